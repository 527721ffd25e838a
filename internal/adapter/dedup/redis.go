// Package dedup suppresses redelivered transport updates. The platform
// delivers at-least-once; a shared Redis keyspace makes redeliveries
// harmless even across bot restarts.
package dedup

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/bridgeos/internal/domain"
)

const defaultTTL = 24 * time.Hour

// Redis implements domain.Deduper on a Redis SETNX per update id.
type Redis struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// New constructs a deduper for one bot slot. Each slot has its own update
// id sequence, so keys are namespaced per slot.
func New(addr string, botSlot int) *Redis {
	return NewWithClient(redis.NewClient(&redis.Options{Addr: addr}), botSlot)
}

// NewWithClient is New with an injected client, for tests.
func NewWithClient(rdb *redis.Client, botSlot int) *Redis {
	return &Redis{
		rdb:    rdb,
		prefix: fmt.Sprintf("bridgeos:update:%d:", botSlot),
		ttl:    defaultTTL,
	}
}

// Seen records id and reports whether it was already recorded. The first
// caller wins the SETNX and proceeds; every redelivery reads true.
func (r *Redis) Seen(ctx domain.Context, id int64) (bool, error) {
	key := fmt.Sprintf("%s%d", r.prefix, id)
	fresh, err := r.rdb.SetNX(ctx, key, 1, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("op=dedup.seen: %w", err)
	}
	return !fresh, nil
}

// Close releases the underlying client.
func (r *Redis) Close() error { return r.rdb.Close() }
