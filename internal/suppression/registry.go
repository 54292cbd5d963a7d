// Package suppression holds the two exclusion lists consulted on every
// scheduling decision: a phone blacklist (bad or disconnected numbers) and
// the set of addresses that already booked an appointment.
//
// Both are small, append-mostly, normalized-key sets. Keeping them as sets
// rather than relational joins is deliberate: datasets are thousands of
// leads and the checks run inside the scheduler tick.
package suppression

import (
	"context"
	"strings"
)

// Registry is the combined suppression contract.
type Registry interface {
	// IsBlacklisted reports whether the phone's last ten digits are
	// blacklisted. Numbers with fewer than ten digits are never
	// considered blacklisted.
	IsBlacklisted(ctx context.Context, phone string) (bool, error)

	// AddToBlacklist records a bad number. Returns true when newly added,
	// false when it was already present.
	AddToBlacklist(ctx context.Context, phone string) (bool, error)

	// IsAddressBooked reports whether a normalized address already
	// converted to a booking.
	IsAddressBooked(ctx context.Context, address string) (bool, error)

	// MarkAddressBooked adds an address to the booked set.
	MarkAddressBooked(ctx context.Context, address string) error
}

// NormalizePhone reduces a phone number to its last ten digits. Returns ""
// when fewer than ten digits remain.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteByte(byte(r))
		}
	}
	d := b.String()
	if len(d) < 10 {
		return ""
	}
	return d[len(d)-10:]
}

// NormalizeAddress trims, lowercases, and collapses runs of whitespace.
func NormalizeAddress(address string) string {
	fields := strings.Fields(strings.ToLower(address))
	return strings.Join(fields, " ")
}
