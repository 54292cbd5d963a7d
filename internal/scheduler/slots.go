package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"outdial/pkg/utils"
)

const dispatchSlotPrefix = "dialer:dispatch:"

// RedisSlots reserves dispatch slots in Redis so ticks racing across
// process restarts, or a tick racing a pending redial timer, cannot
// double-dispatch one externalId. The TTL bounds leakage when a process
// dies holding a slot.
type RedisSlots struct {
	rdb *redis.Client
}

func NewRedisSlots(rdb *redis.Client) *RedisSlots {
	return &RedisSlots{rdb: rdb}
}

func (s *RedisSlots) Acquire(ctx context.Context, externalID string, ttl time.Duration) (bool, error) {
	return utils.AcquireDispatchSlot(ctx, s.rdb, dispatchSlotPrefix+externalID, ttl)
}

func (s *RedisSlots) Release(ctx context.Context, externalID string) error {
	return utils.ReleaseDispatchSlot(ctx, s.rdb, dispatchSlotPrefix+externalID)
}

// MemorySlots is the in-process SlotReserver used in tests and when no
// Redis is configured.
type MemorySlots struct {
	mu   sync.Mutex
	held map[string]time.Time
}

func NewMemorySlots() *MemorySlots {
	return &MemorySlots{held: make(map[string]time.Time)}
}

func (s *MemorySlots) Acquire(_ context.Context, externalID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if exp, ok := s.held[externalID]; ok && time.Now().Before(exp) {
		return false, nil
	}
	s.held[externalID] = time.Now().Add(ttl)
	return true, nil
}

func (s *MemorySlots) Release(_ context.Context, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.held, externalID)
	return nil
}
