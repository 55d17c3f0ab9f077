package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

type VerifyInput struct {
	Identity string `validate:"required,identity"`
	Code     string `validate:"required,otp"`
}

type VerifyOutput struct {
	VerifiedAt time.Time
}

var (
	errNoOTPRequested = goerror.NewBusiness("No OTP requested for this identity", goerror.CodeInvalidFormat)
	errOTPConsumed    = goerror.NewBusiness("OTP has already been used", goerror.CodeGone)
	errOTPExpired     = goerror.NewBusiness("OTP has expired", goerror.CodeGone)
	errOTPLocked      = goerror.NewBusiness("Maximum verification attempts exceeded", goerror.CodeForbidden).With("locked", true)
)

func (s *Usecase) Verify(ctx context.Context, in VerifyInput) (*VerifyOutput, error) {
	ctx, span := s.startSpan(ctx, "Verify")
	defer span.End()

	in.Identity = entity.NormalizeIdentity(in.Identity)
	in.Code = strings.TrimSpace(in.Code)

	if err := s.validator.Validate(in); err != nil {
		s.verifyTotal.Add(ctx, 1, outcome(entity.StatusInvalidFormat))
		return nil, goerror.NewInvalidInput(err)
	}

	rec, err := s.repoDB.GetLatestRecord(ctx, in.Identity)
	if errors.Is(err, goerror.ErrNotFound) {
		s.audit(ctx, entity.EventVerifyFailed, in.Identity, entity.StatusNotFound, nil)
		return nil, errNoOTPRequested
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get latest otp record", "identity", in.Identity, "error", err)
		s.audit(ctx, entity.EventVerifyError, in.Identity, entity.StatusStoreError, map[string]any{"stage": "lookup"})
		return nil, goerror.NewServer(err)
	}

	details := map[string]any{"recordId": rec.ID}
	now := s.clock.Now()
	maxAttempts := s.maxAttempts()

	if rec.Consumed {
		s.audit(ctx, entity.EventVerifyFailed, in.Identity, entity.StatusConsumed, details)
		return nil, errOTPConsumed
	}

	if rec.IsExpired(now) {
		s.audit(ctx, entity.EventVerifyFailed, in.Identity, entity.StatusExpired, details)
		return nil, errOTPExpired
	}

	if rec.IsLocked(maxAttempts) {
		s.audit(ctx, entity.EventVerifyFailed, in.Identity, entity.StatusLocked, details)
		return nil, errOTPLocked
	}

	if !s.hmac.Verify(rec.HashedSecret, in.Code) {
		return nil, s.wrongCode(ctx, in.Identity, rec.ID, maxAttempts)
	}

	if err := s.repoDB.MarkConsumed(ctx, rec.ID, now, maxAttempts); err != nil {
		if refused := s.refusedWrite(ctx, in.Identity, rec.ID, err); refused != nil {
			return nil, refused
		}
		slog.ErrorContext(ctx, "failed to repo mark otp consumed", "record_id", rec.ID, "error", err)
		s.audit(ctx, entity.EventVerifyError, in.Identity, entity.StatusStoreError, map[string]any{"recordId": rec.ID, "stage": "consume"})
		return nil, goerror.NewServer(err)
	}

	s.audit(ctx, entity.EventVerifySuccess, in.Identity, entity.StatusVerified, details)

	return &VerifyOutput{VerifiedAt: now}, nil
}

func (s *Usecase) wrongCode(ctx context.Context, identity string, recordID int64, maxAttempts int) error {
	attempts, err := s.repoDB.IncrementAttempts(ctx, recordID, maxAttempts)
	if err != nil {
		if refused := s.refusedWrite(ctx, identity, recordID, err); refused != nil {
			return refused
		}
		slog.ErrorContext(ctx, "failed to repo increment otp attempts", "record_id", recordID, "error", err)
		s.audit(ctx, entity.EventVerifyError, identity, entity.StatusStoreError, map[string]any{"recordId": recordID, "stage": "increment"})
		return goerror.NewServer(err)
	}

	details := map[string]any{"recordId": recordID, "attempts": attempts}
	if attempts >= maxAttempts {
		s.audit(ctx, entity.EventVerifyFailed, identity, entity.StatusLocked, details)
		return errOTPLocked
	}

	remaining := maxAttempts - attempts
	details["attemptsRemaining"] = remaining
	s.audit(ctx, entity.EventVerifyFailed, identity, entity.StatusIncorrect, details)

	return goerror.NewBusiness("Incorrect OTP", goerror.CodeUnauthorized).With("attemptsRemaining", remaining)
}

// refusedWrite maps a guarded write that lost against a concurrent verify
// or cleanup to the answer the earlier checks would have given. It returns
// nil for store failures.
func (s *Usecase) refusedWrite(ctx context.Context, identity string, recordID int64, err error) error {
	details := map[string]any{"recordId": recordID, "race": true}

	switch {
	case errors.Is(err, entity.ErrRecordLocked):
		s.audit(ctx, entity.EventVerifyFailed, identity, entity.StatusLocked, details)
		return errOTPLocked
	case errors.Is(err, entity.ErrRecordConsumed):
		s.audit(ctx, entity.EventVerifyFailed, identity, entity.StatusConsumed, details)
		return errOTPConsumed
	case errors.Is(err, goerror.ErrNotFound):
		s.audit(ctx, entity.EventVerifyFailed, identity, entity.StatusExpired, details)
		return errOTPExpired
	default:
		return nil
	}
}
