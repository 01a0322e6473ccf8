package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/harissonmatos/betalent-multigateway/internal/domain"
	"github.com/harissonmatos/betalent-multigateway/internal/gateway"
	"github.com/harissonmatos/betalent-multigateway/internal/repository"
)

var ErrUnknownProduct = errors.New("unknown product")

// GatewayResolver maps a directory slug to its wire client. Satisfied by
// *gateway.Registry.
type GatewayResolver interface {
	Resolve(slug string) (gateway.PaymentGateway, error)
}

type CheckoutUsecase struct {
	repo     *repository.SQLiteRepo
	registry GatewayResolver
	logger   *slog.Logger
}

func NewCheckoutUsecase(repo *repository.SQLiteRepo, registry GatewayResolver, logger *slog.Logger) *CheckoutUsecase {
	return &CheckoutUsecase{repo: repo, registry: registry, logger: logger}
}

type CheckoutItem struct {
	ProductID int64
	Quantity  int64
}

// CheckoutInput carries raw card data; it is used for the gateway call and
// discarded. Only the last four card digits ever reach the database or logs.
type CheckoutInput struct {
	ClientName  string
	ClientEmail string
	CardNumber  string
	CVV         string
	Expiry      string
	Items       []CheckoutItem
}

type CheckoutResult struct {
	Transaction domain.Transaction
	Items       []domain.TransactionProduct
	Gateway     *domain.Gateway
}

// Checkout runs the full orchestration: resolve the client, price the cart,
// persist the pending record with its line items, walk the active gateways
// in priority order, and apply exactly one final status update.
//
// Per-gateway failures are swallowed here — including an unknown slug — and
// only the aggregate paid/failed outcome is visible to the caller. Once the
// pending record is persisted the operation itself cannot fail on a gateway.
func (u *CheckoutUsecase) Checkout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	client, err := u.repo.FirstOrCreateClient(ctx, in.ClientEmail, in.ClientName)
	if err != nil {
		return nil, fmt.Errorf("resolve client: %w", err)
	}

	ids := make([]int64, 0, len(in.Items))
	for _, item := range in.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := u.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	// Reject before any pending record exists or any gateway is contacted.
	var totalMinor int64
	for _, item := range in.Items {
		p, ok := products[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownProduct, item.ProductID)
		}
		totalMinor += p.AmountMinor * item.Quantity
	}

	txn := &domain.Transaction{
		ClientID:        client.ID,
		AmountMinor:     totalMinor,
		Status:          domain.StatusPending,
		CardLastNumbers: lastDigits(in.CardNumber, 4),
	}

	items := make([]domain.TransactionProduct, 0, len(in.Items))
	for _, item := range in.Items {
		items = append(items, domain.TransactionProduct{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	if err := u.repo.CreateTransactionWithProducts(ctx, txn, items); err != nil {
		return nil, fmt.Errorf("persist transaction: %w", err)
	}

	charge := gateway.ChargeRequest{
		AmountMinor: totalMinor,
		Name:        in.ClientName,
		Email:       in.ClientEmail,
		CardNumber:  in.CardNumber,
		CVV:         in.CVV,
	}

	status, gatewayID, externalID := u.attemptGateways(ctx, txn.ID, charge)

	if err := u.repo.FinalizeTransaction(ctx, txn.ID, status, gatewayID, externalID); err != nil {
		return nil, fmt.Errorf("finalize transaction: %w", err)
	}

	final, err := u.repo.GetTransaction(ctx, txn.ID)
	if err != nil {
		return nil, err
	}

	result := &CheckoutResult{Transaction: *final, Items: items}
	if final.GatewayID != nil {
		gw, err := u.repo.GetGateway(ctx, *final.GatewayID)
		if err == nil {
			result.Gateway = gw
		}
	}
	return result, nil
}

// attemptGateways walks the active ordering, strictly sequentially, and
// stops at the first accepted charge. An empty ordering resolves straight
// to failed with zero calls.
func (u *CheckoutUsecase) attemptGateways(ctx context.Context, txnID int64, charge gateway.ChargeRequest) (domain.TxStatus, *int64, *string) {
	active, err := u.repo.ActiveGatewaysByPriority(ctx)
	if err != nil {
		u.logger.Error("load active gateways", "transaction_id", txnID, "err", err)
		return domain.StatusFailed, nil, nil
	}

	for _, gw := range active {
		client, err := u.registry.Resolve(gw.Slug)
		if err != nil {
			u.logger.Warn("gateway not registered", "transaction_id", txnID, "slug", gw.Slug)
			continue
		}

		res, err := client.CreateTransaction(ctx, charge)
		if err != nil {
			u.logger.Warn("gateway attempt failed",
				"transaction_id", txnID,
				"gateway", gw.Slug,
				"err", err,
			)
			continue
		}

		u.logger.Info("charge accepted", "transaction_id", txnID, "gateway", gw.Slug)

		gatewayID := gw.ID
		var externalID *string
		if res.ExternalID != "" {
			externalID = &res.ExternalID
		}
		return domain.StatusPaid, &gatewayID, externalID
	}

	u.logger.Warn("all gateways exhausted", "transaction_id", txnID, "attempted", len(active))
	return domain.StatusFailed, nil, nil
}

func lastDigits(cardNumber string, n int) string {
	if len(cardNumber) <= n {
		return cardNumber
	}
	return cardNumber[len(cardNumber)-n:]
}
