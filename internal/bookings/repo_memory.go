package bookings

import (
	"context"
	"sync"
	"time"
)

type MemoryStore struct {
	mu    sync.Mutex
	rows  []Booking
	clock func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{clock: time.Now}
}

func (s *MemoryStore) Add(ctx context.Context, b Booking) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.rows {
		if sameAddress(existing.Address, b.Address) {
			return false, nil
		}
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.clock().UTC()
	}
	s.rows = append(s.rows, b)
	return true, nil
}

func (s *MemoryStore) Addresses(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.rows))
	for i, b := range s.rows {
		out[i] = b.Address
	}
	return out, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Booking, len(s.rows))
	copy(out, s.rows)
	return out, nil
}
