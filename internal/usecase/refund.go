package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/harissonmatos/betalent-multigateway/internal/domain"
	"github.com/harissonmatos/betalent-multigateway/internal/repository"
)

// ErrInvalidState means the transaction is not in a state the operation
// accepts (refunding anything other than a paid transaction).
var ErrInvalidState = errors.New("invalid transaction state")

// ErrGatewayInactive means the gateway that processed the original charge
// has since been disabled; refunds through it are blocked on purpose.
var ErrGatewayInactive = errors.New("gateway unavailable for refund")

// Refund reverses a paid transaction through the exact gateway that
// processed it — no fallback. Unlike checkout, every failure here is
// surfaced to the caller.
//
// Guards, in order: the transaction exists, its status is paid, and its
// recorded gateway exists and is still active.
func (u *CheckoutUsecase) Refund(ctx context.Context, transactionID int64) (*domain.Transaction, error) {
	txn, err := u.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	if txn.Status != domain.StatusPaid {
		return nil, fmt.Errorf("%w: cannot refund a %s transaction", ErrInvalidState, txn.Status)
	}

	if txn.GatewayID == nil {
		return nil, ErrGatewayInactive
	}
	gw, err := u.repo.GetGateway(ctx, *txn.GatewayID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGatewayInactive
		}
		return nil, err
	}
	if !gw.IsActive {
		return nil, ErrGatewayInactive
	}

	client, err := u.registry.Resolve(gw.Slug)
	if err != nil {
		return nil, err
	}

	if _, err := client.Refund(ctx, strconv.FormatInt(txn.ID, 10)); err != nil {
		u.logger.Warn("refund failed", "transaction_id", txn.ID, "gateway", gw.Slug, "err", err)
		return nil, fmt.Errorf("gateway refund: %w", err)
	}

	if err := u.repo.UpdateTransactionStatus(ctx, txn.ID, domain.StatusRefunded); err != nil {
		return nil, err
	}

	u.logger.Info("transaction refunded", "transaction_id", txn.ID, "gateway", gw.Slug)

	return u.repo.GetTransaction(ctx, txn.ID)
}
