package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

type IssueInput struct {
	Identity string `validate:"required,identity"`
}

type IssueOutput struct {
	ExpiresAt      time.Time
	MaskedIdentity string
	// DevCode is only set when app.dev_mode is on.
	DevCode string
}

func (s *Usecase) Issue(ctx context.Context, in IssueInput) (*IssueOutput, error) {
	ctx, span := s.startSpan(ctx, "Issue")
	defer span.End()

	in.Identity = entity.NormalizeIdentity(in.Identity)

	if err := s.validator.Validate(in); err != nil {
		s.audit(ctx, entity.EventIssueFailed, in.Identity, entity.StatusInvalidFormat, nil)
		return nil, goerror.NewInvalidInput(err)
	}

	rl, err := s.CheckRateLimit(ctx, in.Identity)
	if err != nil {
		s.audit(ctx, entity.EventIssueError, in.Identity, entity.StatusStoreError, map[string]any{"stage": "rate_limit"})
		return nil, err
	}
	if !rl.Allowed {
		s.audit(ctx, entity.EventIssueFailed, in.Identity, entity.StatusRateLimited, map[string]any{
			"retryAfter": rl.RetryAfterSeconds,
			"locked":     rl.Locked,
		})
		return nil, rateLimited(rl.RetryAfterSeconds)
	}

	// without a cooldown there is no window to serialise issues in
	cooldown := s.cooldown()
	locked := false
	if cooldown > 0 {
		locked, err = s.repoCache.AcquireIssueLock(ctx, in.Identity, cooldown)
		if err != nil {
			slog.WarnContext(ctx, "issue lock unavailable, relying on store check", "identity", in.Identity, "error", err)
		} else if !locked {
			retryAfter := int(cooldown / time.Second)
			s.audit(ctx, entity.EventIssueFailed, in.Identity, entity.StatusRateLimited, map[string]any{
				"retryAfter": retryAfter,
				"reason":     "concurrent_issue",
			})
			return nil, rateLimited(retryAfter)
		}
	}

	// the lock is held only by an issue that stored its record
	issued := false
	defer func() {
		if locked && !issued {
			s.releaseIssueLock(ctx, in.Identity)
		}
	}()

	code, err := generateCode()
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate otp code", "error", err)
		s.audit(ctx, entity.EventIssueError, in.Identity, entity.StatusInternalFailure, nil)
		return nil, goerror.NewServer(err)
	}

	hashed, err := s.hmac.Hash(code)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash otp code", "error", err)
		s.audit(ctx, entity.EventIssueError, in.Identity, entity.StatusInternalFailure, nil)
		return nil, goerror.NewServer(err)
	}

	now := s.clock.Now()
	rec := entity.Record{
		ID:           s.uid.Generate(),
		Identity:     in.Identity,
		HashedSecret: string(hashed),
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.expiry()),
	}

	if err := s.repoDB.CreateRecord(ctx, rec); err != nil {
		slog.ErrorContext(ctx, "failed to repo create otp record", "identity", in.Identity, "error", err)
		s.audit(ctx, entity.EventIssueError, in.Identity, entity.StatusStoreError, map[string]any{"stage": "insert"})
		return nil, goerror.NewServer(err)
	}

	kind := entity.KindOf(in.Identity)
	if err := s.repoMessaging.PublishDelivery(ctx, DeliveryEvent{
		Identity:  in.Identity,
		Channel:   kind,
		Code:      code,
		ExpiresAt: rec.ExpiresAt,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to publish otp delivery", "record_id", rec.ID, "error", err)
	}

	s.audit(ctx, entity.EventIssueSuccess, in.Identity, entity.StatusSent, map[string]any{
		"recordId":  rec.ID,
		"channel":   string(kind),
		"expiresAt": rec.ExpiresAt,
	})

	issued = true
	out := &IssueOutput{
		ExpiresAt:      rec.ExpiresAt,
		MaskedIdentity: entity.MaskIdentity(in.Identity),
	}
	if s.cfg.GetBool("app.dev_mode") {
		out.DevCode = code
	}

	return out, nil
}

func (s *Usecase) releaseIssueLock(ctx context.Context, identity string) {
	if err := s.repoCache.ReleaseIssueLock(ctx, identity); err != nil {
		slog.WarnContext(ctx, "failed to release issue lock", "identity", identity, "error", err)
	}
}

func rateLimited(retryAfter int) error {
	return goerror.NewBusiness("Please wait before requesting a new OTP", goerror.CodeTooManyRequest).
		With("retryAfter", retryAfter)
}
