// Package bookings persists booked appointments. The booked-address
// suppression set is derived from this table: once an address appears here
// the dialers stop calling leads at that address.
package bookings

import (
	"context"
	"time"

	"outdial/internal/suppression"
)

type Booking struct {
	FirstName  string    `json:"first_name" db:"first_name"`
	LastName   string    `json:"last_name" db:"last_name"`
	Address    string    `json:"address" db:"address"`
	Phone      string    `json:"phone" db:"phone"`
	Transcript string    `json:"transcript" db:"transcript"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Store is append-only; bookings are never edited or deleted.
type Store interface {
	// Add appends a booking unless one already exists for the same
	// normalized address. Returns true when appended.
	Add(ctx context.Context, b Booking) (bool, error)

	// Addresses returns every booked address (raw, as stored).
	Addresses(ctx context.Context) ([]string, error)

	List(ctx context.Context) ([]Booking, error)
}

func sameAddress(a, b string) bool {
	na := suppression.NormalizeAddress(a)
	return na != "" && na == suppression.NormalizeAddress(b)
}
