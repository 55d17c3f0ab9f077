package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/shandysiswandi/otpgate/internal/notification/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
)

const (
	otpEmailSubject = "{{.app}} verification code"
	otpEmailText    = "Your {{.app}} verification code is {{.code}}. It expires in {{.minutes}} minute(s).\r\n" +
		"If you did not request this code, you can ignore this email."
	otpSMSText = "{{.code}} is your {{.app}} verification code. It expires in {{.minutes}} min."
)

type DeliverOTPInput struct {
	Identity  string `validate:"required,identity"`
	Channel   string `validate:"required"`
	Code      string `validate:"required,otp"`
	ExpiresAt time.Time
}

// DeliverOTP sends the code over the channel of the identity. Invalid input
// is logged and dropped; a failed send is returned so the broker redelivers.
func (s *Usecase) DeliverOTP(ctx context.Context, in DeliverOTPInput) error {
	ctx, span := s.startSpan(ctx, "DeliverOTP")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.ErrorContext(ctx, "Validation failed", "error", err)
		return nil
	}

	data := map[string]any{
		"app":     s.appName(),
		"code":    in.Code,
		"minutes": s.minutesLeft(in.ExpiresAt),
	}

	switch ch := entity.ChannelFromString(in.Channel); ch {
	case entity.ChannelEmail:
		return s.deliverEmail(ctx, in.Identity, data)
	case entity.ChannelSMS:
		return s.deliverSMS(ctx, in.Identity, data)
	default:
		slog.WarnContext(ctx, "otp delivery channel not supported", "channel", in.Channel)
		return nil
	}
}

func (s *Usecase) deliverEmail(ctx context.Context, to string, data map[string]any) error {
	subject, err := s.renderTemplate("subject", otpEmailSubject, data)
	if err != nil {
		slog.ErrorContext(ctx, "failed to render otp email subject", "error", err)
		return nil
	}
	body, err := s.renderTemplate("body", otpEmailText, data)
	if err != nil {
		slog.ErrorContext(ctx, "failed to render otp email body", "error", err)
		return nil
	}

	if err := s.repoMail.Send(ctx, mail.Message{
		To:       []string{to},
		Subject:  subject,
		TextBody: body,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to send otp email", "error", err)
		return fmt.Errorf("send otp email: %w", err)
	}

	return nil
}

func (s *Usecase) deliverSMS(ctx context.Context, to string, data map[string]any) error {
	body, err := s.renderTemplate("sms", otpSMSText, data)
	if err != nil {
		slog.ErrorContext(ctx, "failed to render otp sms body", "error", err)
		return nil
	}

	if err := s.repoSMS.Send(ctx, to, body); err != nil {
		slog.ErrorContext(ctx, "failed to send otp sms", "error", err)
		return fmt.Errorf("send otp sms: %w", err)
	}

	return nil
}

// minutesLeft rounds up and never reports less than one minute, so a
// message delayed in the broker still reads sensibly.
func (s *Usecase) minutesLeft(expiresAt time.Time) int {
	left := expiresAt.Sub(s.clock.Now()).Minutes()
	return max(1, int(math.Ceil(left)))
}
