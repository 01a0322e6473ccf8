package httpd

import "time"

type CheckoutReq struct {
	Client   ClientPayload    `json:"client" validate:"required"`
	Payment  PaymentPayload   `json:"payment" validate:"required"`
	Products []ProductPayload `json:"products" validate:"required,min=1,dive"`
}

type ClientPayload struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

type PaymentPayload struct {
	CardNumber string `json:"cardNumber" validate:"required,min=13,max=19,numeric"`
	CVV        string `json:"cvv" validate:"required,min=3,max=4,numeric"`
	Expiry     string `json:"expiry" validate:"required"` // MM/YY or MM/YYYY
}

type ProductPayload struct {
	ID       int64 `json:"id" validate:"required,min=1"`
	Quantity int64 `json:"quantity" validate:"required,min=1"`
}

type CheckoutResp struct {
	Success     bool          `json:"success"`
	Transaction TransactionVM `json:"transaction"`
}

type TransactionVM struct {
	ID              int64      `json:"id"`
	ClientID        int64      `json:"clientId"`
	GatewayID       *int64     `json:"gatewayId"`
	ExternalID      *string    `json:"externalId"`
	Amount          string     `json:"amount"`
	Status          string     `json:"status"`
	CardLastNumbers string     `json:"cardLastNumbers"`
	Gateway         *GatewayVM `json:"gateway,omitempty"`
	Products        []LineItem `json:"products,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type LineItem struct {
	ProductID int64 `json:"productId"`
	Quantity  int64 `json:"quantity"`
}

type GatewayVM struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Priority int    `json:"priority"`
	IsActive bool   `json:"isActive"`
}

type ProductReq struct {
	Name   string `json:"name" validate:"required"`
	Amount string `json:"amount" validate:"required"` // decimal string, e.g. "100.50"
}

type ProductVM struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Amount    string    `json:"amount"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ClientVM struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	Transactions []TransactionVM `json:"transactions,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

type PriorityReq struct {
	Priority int `json:"priority" validate:"required,min=1"`
}
