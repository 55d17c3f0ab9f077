package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

type StatsInput struct {
	Identity string `validate:"required,identity"`
}

type StatsOutput struct {
	Identity    string
	Attempts    int
	MaxAttempts int
	Locked      bool
	Consumed    bool
	ExpiresAt   time.Time
	CreatedAt   time.Time
	ConsumedAt  *time.Time
}

func (s *Usecase) Stats(ctx context.Context, in StatsInput) (*StatsOutput, error) {
	ctx, span := s.startSpan(ctx, "Stats")
	defer span.End()

	in.Identity = entity.NormalizeIdentity(in.Identity)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	rec, err := s.repoDB.GetLatestRecord(ctx, in.Identity)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, goerror.NewBusiness("No OTP found for this identity", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get latest otp record", "identity", in.Identity, "error", err)
		return nil, goerror.NewServer(err)
	}

	maxAttempts := s.maxAttempts()

	return &StatsOutput{
		Identity:    rec.Identity,
		Attempts:    rec.Attempts,
		MaxAttempts: maxAttempts,
		Locked:      rec.IsLocked(maxAttempts),
		Consumed:    rec.Consumed,
		ExpiresAt:   rec.ExpiresAt,
		CreatedAt:   rec.CreatedAt,
		ConsumedAt:  rec.ConsumedAt,
	}, nil
}
