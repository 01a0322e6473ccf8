package domain

import "time"

type TxStatus string

const (
	StatusPending  TxStatus = "pending"
	StatusPaid     TxStatus = "paid"
	StatusFailed   TxStatus = "failed"
	StatusRefunded TxStatus = "refunded"
)

// Transaction is the durable record of one checkout attempt. GatewayID and
// ExternalID stay nil until a gateway accepts the charge, and stay nil
// forever when every gateway refused it.
type Transaction struct {
	ID              int64
	ClientID        int64
	GatewayID       *int64
	ExternalID      *string
	AmountMinor     int64
	Status          TxStatus
	CardLastNumbers string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type TransactionProduct struct {
	ID            int64
	TransactionID int64
	ProductID     int64
	Quantity      int64
}
