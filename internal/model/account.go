package model

import "time"

// Account is the command-side row for a customer account. Balance is in minor
// units (cents) and is only ever mutated under a FOR UPDATE row lock.
type Account struct {
	ID        string    `db:"id"`
	OwnerID   string    `db:"owner_id"`
	Balance   int64     `db:"balance"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
