package cache

import (
	"context"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"go.opentelemetry.io/otel/codes"
)

// KeyPrefix namespaces the per-identity issue lock.
const KeyPrefix = "otp:issue:"

type Cache struct {
	locker idempotency.Locker
	ins    instrument.Instrumentation
}

func NewCache(locker idempotency.Locker, ins instrument.Instrumentation) *Cache {
	return &Cache{locker: locker, ins: ins}
}

func (c *Cache) AcquireIssueLock(ctx context.Context, identity string, ttl time.Duration) (bool, error) {
	ctx, span := c.ins.Tracer("otp.outbound.cache").Start(ctx, "AcquireIssueLock")
	defer span.End()

	ok, err := c.locker.Acquire(ctx, identity, ttl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	return ok, nil
}

func (c *Cache) ReleaseIssueLock(ctx context.Context, identity string) error {
	ctx, span := c.ins.Tracer("otp.outbound.cache").Start(ctx, "ReleaseIssueLock")
	defer span.End()

	if err := c.locker.Release(ctx, identity); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
