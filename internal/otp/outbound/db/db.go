package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tableRecords = "otp_records"
	tableAudit   = "otp_audit_logs"

	uniqueViolation = "23505"
)

// DB is the postgres store for otp records and their audit trail.
type DB struct {
	conn *pgxpool.Pool
	ins  instrument.Instrumentation
}

func NewDB(conn *pgxpool.Pool, ins instrument.Instrumentation) *DB {
	return &DB{conn: conn, ins: ins}
}

// mapError turns no rows into goerror.ErrNotFound and a unique violation
// into goerror.ErrConflict. Anything else, a check violation included, is
// a broken invariant and surfaces unchanged.
func (s *DB) mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return goerror.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return goerror.ErrConflict
	}
	return err
}

func (s *DB) startSpan(ctx context.Context, op, table string) (context.Context, trace.Span) {
	return s.ins.Tracer("otp.outbound.db").Start(ctx, op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.collection.name", table),
		),
	)
}

// endSpan leaves expected outcomes (not found, conflict) out of the error
// status.
func (s *DB) endSpan(span trace.Span, err error) {
	if err != nil && !expectedOutcome(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func expectedOutcome(err error) bool {
	return errors.Is(err, goerror.ErrNotFound) ||
		errors.Is(err, goerror.ErrConflict) ||
		errors.Is(err, entity.ErrRecordConsumed) ||
		errors.Is(err, entity.ErrRecordLocked)
}
