package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

const (
	queryGetLatestRecord = `SELECT id, identity, hashed_secret, created_at, expires_at, attempts, consumed, consumed_at
FROM otp_records
WHERE identity = $1
ORDER BY created_at DESC, id DESC
LIMIT 1`

	queryCreateRecord = `INSERT INTO otp_records (id, identity, hashed_secret, created_at, expires_at, attempts, consumed)
VALUES ($1, $2, $3, $4, $5, 0, false)`

	queryIncrementAttempts = `UPDATE otp_records
SET attempts = attempts + 1
WHERE id = $1 AND consumed = false AND attempts < $2
RETURNING attempts`

	queryMarkConsumed = `UPDATE otp_records
SET consumed = true, consumed_at = $2
WHERE id = $1 AND consumed = false AND attempts < $3`

	queryGetRecordState = `SELECT consumed, attempts FROM otp_records WHERE id = $1`

	queryDeleteExpiredRecords = `DELETE FROM otp_records WHERE expires_at < $1`
)

func (s *DB) GetLatestRecord(ctx context.Context, identity string) (_ *entity.Record, err error) {
	ctx, span := s.startSpan(ctx, "GetLatestRecord", tableRecords)
	defer func() { s.endSpan(span, err) }()

	var rec entity.Record
	err = s.conn.QueryRow(ctx, queryGetLatestRecord, identity).Scan(
		&rec.ID,
		&rec.Identity,
		&rec.HashedSecret,
		&rec.CreatedAt,
		&rec.ExpiresAt,
		&rec.Attempts,
		&rec.Consumed,
		&rec.ConsumedAt,
	)
	if err != nil {
		return nil, s.mapError(err)
	}

	return &rec, nil
}

func (s *DB) CreateRecord(ctx context.Context, rec entity.Record) (err error) {
	ctx, span := s.startSpan(ctx, "CreateRecord", tableRecords)
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, queryCreateRecord, rec.ID, rec.Identity, rec.HashedSecret, rec.CreatedAt, rec.ExpiresAt)
	return s.mapError(err)
}

// IncrementAttempts counts a wrong guess unless the record is consumed or
// already at maxAttempts; those cases return entity.ErrRecordConsumed and
// entity.ErrRecordLocked.
func (s *DB) IncrementAttempts(ctx context.Context, id int64, maxAttempts int) (_ int, err error) {
	ctx, span := s.startSpan(ctx, "IncrementAttempts", tableRecords)
	defer func() { s.endSpan(span, err) }()

	var attempts int
	err = s.conn.QueryRow(ctx, queryIncrementAttempts, id, maxAttempts).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, s.refusedWrite(ctx, id, maxAttempts)
	}
	if err != nil {
		return 0, s.mapError(err)
	}

	return attempts, nil
}

// MarkConsumed flips consumed once, under the same guard as IncrementAttempts.
func (s *DB) MarkConsumed(ctx context.Context, id int64, at time.Time, maxAttempts int) (err error) {
	ctx, span := s.startSpan(ctx, "MarkConsumed", tableRecords)
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, queryMarkConsumed, id, at, maxAttempts)
	if err != nil {
		return s.mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return s.refusedWrite(ctx, id, maxAttempts)
	}

	return nil
}

// refusedWrite tells why a guarded update matched no row. consumed and
// attempts only move one way, so the state read afterwards still explains
// the refusal.
func (s *DB) refusedWrite(ctx context.Context, id int64, maxAttempts int) error {
	var (
		consumed bool
		attempts int
	)
	if err := s.conn.QueryRow(ctx, queryGetRecordState, id).Scan(&consumed, &attempts); err != nil {
		return s.mapError(err)
	}

	switch {
	case consumed:
		return entity.ErrRecordConsumed
	case attempts >= maxAttempts:
		return entity.ErrRecordLocked
	default:
		return goerror.ErrConflict
	}
}

func (s *DB) DeleteExpiredRecords(ctx context.Context, before time.Time) (_ int64, err error) {
	ctx, span := s.startSpan(ctx, "DeleteExpiredRecords", tableRecords)
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, queryDeleteExpiredRecords, before)
	if err != nil {
		return 0, s.mapError(err)
	}

	return tag.RowsAffected(), nil
}
