package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shandysiswandi/otpgate/internal/otp/entity"
)

const (
	queryCreateAudit = `INSERT INTO otp_audit_logs (id, event_type, identity, status, details, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	queryListAuditsBefore = `SELECT id, event_type, identity, status, details, created_at
FROM otp_audit_logs
WHERE created_at < $1
ORDER BY created_at, id`

	queryDeleteAuditsBefore = `DELETE FROM otp_audit_logs WHERE created_at < $1`
)

func (s *DB) CreateAudit(ctx context.Context, entry entity.AuditEntry) (err error) {
	ctx, span := s.startSpan(ctx, "CreateAudit", tableAudit)
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, queryCreateAudit,
		entry.ID,
		entry.EventType.String(),
		entry.Identity,
		entry.Status,
		entry.Details,
		entry.Timestamp,
	)
	return s.mapError(err)
}

func (s *DB) ListAuditsBefore(ctx context.Context, before time.Time) (_ []entity.AuditEntry, err error) {
	ctx, span := s.startSpan(ctx, "ListAuditsBefore", tableAudit)
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx, queryListAuditsBefore, before)
	if err != nil {
		return nil, s.mapError(err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.AuditEntry, error) {
		var (
			e  entity.AuditEntry
			et string
		)
		err := row.Scan(&e.ID, &et, &e.Identity, &e.Status, &e.Details, &e.Timestamp)
		e.EventType = entity.EventType(et)
		return e, err
	})
	if err != nil {
		return nil, s.mapError(err)
	}

	return entries, nil
}

func (s *DB) DeleteAuditsBefore(ctx context.Context, before time.Time) (_ int64, err error) {
	ctx, span := s.startSpan(ctx, "DeleteAuditsBefore", tableAudit)
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, queryDeleteAuditsBefore, before)
	if err != nil {
		return 0, s.mapError(err)
	}

	return tag.RowsAffected(), nil
}
