package inbound

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
)

// RegisterCleanupJob runs Cleanup every interval until ctx is done. A
// non-positive interval leaves cleanup to POST /otp/cleanup.
func RegisterCleanupJob(ctx context.Context, routine *goroutine.Manager, uc uc, interval time.Duration) {
	if interval <= 0 {
		return
	}

	routine.Go(ctx, func(context.Context) error {
		slog.InfoContext(ctx, "Running job for otp cleanup", "interval", interval.String())
		runCleanup(ctx, uc, interval)
		return nil
	})
}

func runCleanup(ctx context.Context, uc uc, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			out, err := uc.Cleanup(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "otp cleanup job failed", "error", err)
				continue
			}
			slog.InfoContext(ctx, "otp cleanup job finished",
				"deleted", out.DeletedCount,
				"audit_purged", out.AuditPurgedCount,
				"audit_archived", out.AuditArchivedCount,
			)
		}
	}
}
