package usecase

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

type RateLimitResult struct {
	Allowed           bool
	RetryAfterSeconds int
	Locked            bool
}

// CheckRateLimit decides from the latest record whether a new code may be
// issued. It never writes.
func (s *Usecase) CheckRateLimit(ctx context.Context, identity string) (*RateLimitResult, error) {
	ctx, span := s.startSpan(ctx, "CheckRateLimit")
	defer span.End()

	rec, err := s.repoDB.GetLatestRecord(ctx, identity)
	if errors.Is(err, goerror.ErrNotFound) {
		return &RateLimitResult{Allowed: true}, nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get latest otp record", "identity", identity, "error", err)
		return nil, goerror.NewServer(err)
	}

	cooldown := s.cooldown()
	elapsed := s.clock.Now().Sub(rec.CreatedAt)
	if elapsed < cooldown {
		return &RateLimitResult{
			RetryAfterSeconds: int(math.Ceil((cooldown - elapsed).Seconds())),
			Locked:            rec.IsLocked(s.maxAttempts()),
		}, nil
	}

	// locking is per record, a fresh issue supersedes a locked one
	return &RateLimitResult{Allowed: true}, nil
}
