package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

type DeliveryEvent struct {
	Identity  string
	Channel   entity.IdentityKind
	Code      string
	ExpiresAt time.Time
}

type repoMessaging interface {
	PublishDelivery(ctx context.Context, msg DeliveryEvent) error
}

type repoDB interface {
	GetLatestRecord(ctx context.Context, identity string) (*entity.Record, error)
	CreateRecord(ctx context.Context, rec entity.Record) error
	// IncrementAttempts and MarkConsumed apply only while the record is
	// unconsumed and below maxAttempts, checked by the write itself. A refused
	// write returns entity.ErrRecordConsumed or entity.ErrRecordLocked, and
	// goerror.ErrNotFound when cleanup removed the record.
	IncrementAttempts(ctx context.Context, id int64, maxAttempts int) (int, error)
	MarkConsumed(ctx context.Context, id int64, at time.Time, maxAttempts int) error
	DeleteExpiredRecords(ctx context.Context, before time.Time) (int64, error)

	CreateAudit(ctx context.Context, entry entity.AuditEntry) error
	ListAuditsBefore(ctx context.Context, before time.Time) ([]entity.AuditEntry, error)
	DeleteAuditsBefore(ctx context.Context, before time.Time) (int64, error)
}

type repoCache interface {
	AcquireIssueLock(ctx context.Context, identity string, ttl time.Duration) (bool, error)
	ReleaseIssueLock(ctx context.Context, identity string) error
}

type repoArchive interface {
	ArchiveAudits(ctx context.Context, runAt time.Time, entries []entity.AuditEntry) error
}

type Usecase struct {
	repoDB        repoDB
	repoCache     repoCache
	repoMessaging repoMessaging
	repoArchive   repoArchive
	validator     validator.Validator
	cfg           config.Config
	hmac          hash.Hash
	uid           uid.NumberID
	clock         clock.Clocker
	ins           instrument.Instrumentation
	goroutine     *goroutine.Manager

	issueTotal  metric.Int64Counter
	verifyTotal metric.Int64Counter
}

type Dependency struct {
	RepoDB        repoDB
	RepoCache     repoCache
	RepoMessaging repoMessaging
	// RepoArchive is optional; nil purges audits without exporting them.
	RepoArchive repoArchive
	Validator   validator.Validator
	Config      config.Config
	HMAC        hash.Hash
	UID         uid.NumberID
	Clock       clock.Clocker
	Instrument  instrument.Instrumentation
	Goroutine   *goroutine.Manager
}

func New(dep Dependency) *Usecase {
	meter := dep.Instrument.Meter("otp.usecase")

	return &Usecase{
		repoDB:        dep.RepoDB,
		repoCache:     dep.RepoCache,
		repoMessaging: dep.RepoMessaging,
		repoArchive:   dep.RepoArchive,
		validator:     dep.Validator,
		cfg:           dep.Config,
		hmac:          dep.HMAC,
		uid:           dep.UID,
		clock:         dep.Clock,
		ins:           dep.Instrument,
		goroutine:     dep.Goroutine,
		issueTotal:    newCounter(meter, "otp.issue.total", "OTP issue calls by outcome"),
		verifyTotal:   newCounter(meter, "otp.verify.total", "OTP verify calls by outcome"),
	}
}

func newCounter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		slog.Warn("failed to create counter, falling back to noop", "name", name, "error", err)
		return noop.Int64Counter{}
	}
	return c
}

func outcome(status string) metric.AddOption {
	return metric.WithAttributes(attribute.String("outcome", status))
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("otp.usecase").Start(ctx, name)
}

func (s *Usecase) maxAttempts() int {
	return s.cfg.GetInt("modules.otp.max_attempts")
}

func (s *Usecase) cooldown() time.Duration {
	return s.cfg.GetSecond("modules.otp.resend_cooldown_seconds")
}

func (s *Usecase) expiry() time.Duration {
	return s.cfg.GetMinute("modules.otp.expiry_minutes")
}

// audit records an outcome and bumps its counter. The write runs on the
// goroutine manager; a dropped or failed write never reaches the caller.
func (s *Usecase) audit(ctx context.Context, et entity.EventType, identity, status string, details map[string]any) {
	counter := s.verifyTotal
	if et == entity.EventIssueSuccess || et == entity.EventIssueFailed || et == entity.EventIssueError {
		counter = s.issueTotal
	}
	counter.Add(ctx, 1, outcome(status))

	entry := entity.AuditEntry{
		ID:        s.uid.Generate(),
		EventType: et,
		Identity:  identity,
		Status:    status,
		Details:   details,
		Timestamp: s.clock.Now(),
	}

	s.goroutine.Go(ctx, func(ctx context.Context) error {
		if err := s.repoDB.CreateAudit(ctx, entry); err != nil {
			slog.WarnContext(ctx, "failed to repo create audit entry", "event_type", et.String(), "status", status, "error", err)
		}
		return nil
	})
}
