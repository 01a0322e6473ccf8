package domain

import "time"

// Gateway is a payment gateway entry in the routing directory. Priority is
// a dense 1..N ordering key, smaller tried first. Slug selects the wire
// client; it never changes after seeding.
type Gateway struct {
	ID        int64
	Name      string
	Slug      string
	Priority  int
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
