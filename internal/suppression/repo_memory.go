package suppression

import (
	"context"
	"sync"
)

// MemoryRegistry is the in-process implementation used by tests.
type MemoryRegistry struct {
	mu        sync.Mutex
	phones    map[string]struct{}
	addresses map[string]struct{}
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		phones:    make(map[string]struct{}),
		addresses: make(map[string]struct{}),
	}
}

func (r *MemoryRegistry) IsBlacklisted(ctx context.Context, phone string) (bool, error) {
	n := NormalizePhone(phone)
	if n == "" {
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.phones[n]
	return ok, nil
}

func (r *MemoryRegistry) AddToBlacklist(ctx context.Context, phone string) (bool, error) {
	n := NormalizePhone(phone)
	if n == "" {
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.phones[n]; ok {
		return false, nil
	}
	r.phones[n] = struct{}{}
	return true, nil
}

func (r *MemoryRegistry) IsAddressBooked(ctx context.Context, address string) (bool, error) {
	n := NormalizeAddress(address)
	if n == "" {
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.addresses[n]
	return ok, nil
}

func (r *MemoryRegistry) MarkAddressBooked(ctx context.Context, address string) error {
	n := NormalizeAddress(address)
	if n == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addresses[n] = struct{}{}
	return nil
}

// Size returns the number of blacklisted phones. Test helper.
func (r *MemoryRegistry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.phones)
}
