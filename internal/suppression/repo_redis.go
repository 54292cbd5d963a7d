package suppression

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const (
	blacklistKey = "dialer:blacklist"
	bookedKey    = "dialer:booked_addresses"
)

// RedisRegistry stores both suppression sets as Redis sets. SADD's reply
// gives the exact add-if-absent semantics the blacklist contract requires.
type RedisRegistry struct {
	rdb *redis.Client
}

func NewRedisRegistry(rdb *redis.Client) *RedisRegistry {
	return &RedisRegistry{rdb: rdb}
}

func (r *RedisRegistry) IsBlacklisted(ctx context.Context, phone string) (bool, error) {
	n := NormalizePhone(phone)
	if n == "" {
		return false, nil
	}
	return r.rdb.SIsMember(ctx, blacklistKey, n).Result()
}

func (r *RedisRegistry) AddToBlacklist(ctx context.Context, phone string) (bool, error) {
	n := NormalizePhone(phone)
	if n == "" {
		return false, nil
	}
	added, err := r.rdb.SAdd(ctx, blacklistKey, n).Result()
	if err != nil {
		return false, err
	}
	return added == 1, nil
}

func (r *RedisRegistry) IsAddressBooked(ctx context.Context, address string) (bool, error) {
	n := NormalizeAddress(address)
	if n == "" {
		return false, nil
	}
	return r.rdb.SIsMember(ctx, bookedKey, n).Result()
}

func (r *RedisRegistry) MarkAddressBooked(ctx context.Context, address string) error {
	n := NormalizeAddress(address)
	if n == "" {
		return nil
	}
	return r.rdb.SAdd(ctx, bookedKey, n).Err()
}

// SeedAddresses rebuilds the booked-address set from the bookings table at
// process start, so the derived set survives Redis flushes.
func (r *RedisRegistry) SeedAddresses(ctx context.Context, addresses []string) error {
	members := make([]any, 0, len(addresses))
	for _, a := range addresses {
		if n := NormalizeAddress(a); n != "" {
			members = append(members, n)
		}
	}
	if len(members) == 0 {
		return nil
	}
	return r.rdb.SAdd(ctx, bookedKey, members...).Err()
}
