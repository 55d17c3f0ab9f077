// Package idempotency refuses concurrent duplicates of an operation by
// holding a short-lived redis key while it runs.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrInvalidTTL is returned for a lock without expiry.
var ErrInvalidTTL = errors.New("idempotency: ttl must be positive")

const defaultPrefix = "idempotency:"

// Locker guards an operation key.
type Locker interface {
	// Acquire reports whether the caller now holds key. It never blocks.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release frees key early, e.g. when the guarded operation failed and
	// may be retried at once.
	Release(ctx context.Context, key string) error
}

// RedisLocker implements Locker with SET NX PX.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
}

// New creates a locker whose keys are prefix+key. An empty prefix uses
// "idempotency:".
func New(client redis.UniversalClient, prefix string) *RedisLocker {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisLocker{client: client, prefix: prefix}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, ErrInvalidTTL
	}
	return l.client.SetNX(ctx, l.prefix+key, time.Now().UnixMilli(), ttl).Result()
}

func (l *RedisLocker) Release(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.prefix+key).Err()
}
