package models

import "time"

// Wallet holds a user's balance in minor units (kobo). It is mutated only
// inside the settlement transaction of the transactions repository.
type Wallet struct {
	UserID    string    `json:"user_id"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}
