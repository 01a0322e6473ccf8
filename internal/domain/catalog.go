package domain

import "time"

// Product prices are stored in integer minor units (cents).
type Product struct {
	ID          int64
	Name        string
	AmountMinor int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Client struct {
	ID        int64
	Name      string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
