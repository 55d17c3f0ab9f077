package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

type CleanupOutput struct {
	DeletedCount       int64
	AuditPurgedCount   int64
	AuditArchivedCount int
}

// Cleanup deletes every record that expired before now minus the cleanup
// retention, consumed or not, then purges old audit entries. The audit purge
// is skipped when exporting them fails, so no entry is lost.
func (s *Usecase) Cleanup(ctx context.Context) (*CleanupOutput, error) {
	ctx, span := s.startSpan(ctx, "Cleanup")
	defer span.End()

	now := s.clock.Now()
	cutoff := now.Add(-s.cfg.GetMinute("modules.otp.cleanup_retention_minutes"))

	deleted, err := s.repoDB.DeleteExpiredRecords(ctx, cutoff)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo delete expired otp records", "cutoff", cutoff, "error", err)
		return nil, goerror.NewServer(err)
	}

	out := &CleanupOutput{DeletedCount: deleted}
	s.purgeAudits(ctx, now, out)

	slog.InfoContext(ctx, "otp cleanup finished",
		"deleted", out.DeletedCount,
		"audit_purged", out.AuditPurgedCount,
		"audit_archived", out.AuditArchivedCount,
	)

	return out, nil
}

func (s *Usecase) purgeAudits(ctx context.Context, now time.Time, out *CleanupOutput) {
	retention := s.cfg.GetDay("modules.otp.audit_retention_days")
	if retention <= 0 {
		return
	}
	cutoff := now.Add(-retention)

	if s.repoArchive != nil {
		entries, err := s.repoDB.ListAuditsBefore(ctx, cutoff)
		if err != nil {
			slog.ErrorContext(ctx, "failed to repo list audit entries for archive", "cutoff", cutoff, "error", err)
			return
		}
		if len(entries) == 0 {
			return
		}
		if err := s.repoArchive.ArchiveAudits(ctx, now, entries); err != nil {
			slog.ErrorContext(ctx, "failed to archive audit entries, purge skipped", "count", len(entries), "error", err)
			return
		}
		out.AuditArchivedCount = len(entries)
	}

	purged, err := s.repoDB.DeleteAuditsBefore(ctx, cutoff)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo purge audit entries", "cutoff", cutoff, "error", err)
		return
	}
	out.AuditPurgedCount = purged
}
