package gateway

import (
	"context"
	"errors"
)

// ErrUnavailable covers both transport failures and non-2xx wire responses
// from a gateway. During checkout it triggers fallback to the next gateway;
// during refund it is surfaced to the caller.
var ErrUnavailable = errors.New("gateway unavailable")

// ChargeRequest carries raw card data and must never be persisted or logged.
// Amount is in integer minor units; gateways never receive floats.
type ChargeRequest struct {
	AmountMinor int64
	Name        string
	Email       string
	CardNumber  string
	CVV         string
}

type ChargeResult struct {
	ExternalID string
}

type RefundResult struct {
	ExternalID string
}

// RawTransaction is a gateway-side transaction as returned by its listing
// endpoint, kept untyped because field naming differs per gateway.
type RawTransaction map[string]any

// PaymentGateway is implemented once per gateway. Implementations own the
// wire field naming and the authentication scheme; they never retry — the
// checkout fallback loop decides what happens after a failure.
type PaymentGateway interface {
	ListTransactions(ctx context.Context) ([]RawTransaction, error)
	CreateTransaction(ctx context.Context, req ChargeRequest) (ChargeResult, error)
	Refund(ctx context.Context, transactionID string) (RefundResult, error)
}
