package inbound

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpgate/internal/notification/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
	"go.opentelemetry.io/otel/trace"
)

type MQHandler struct {
	uc   uc
	uuid uid.StringID
	ins  instrument.Instrumentation
}

func (h *MQHandler) ensureCorrelationID(ctx context.Context, msg messaging.Message) context.Context {
	if cID := msg.Header(event.HeaderCorrelationID); cID != "" {
		return instrument.SetCorrelationID(ctx, cID)
	}
	if h.uuid == nil {
		return ctx
	}
	return instrument.SetCorrelationID(ctx, h.uuid.Generate())
}

// OTPDelivery never logs the body: it carries the plaintext code.
func (h *MQHandler) OTPDelivery(ctx context.Context, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(messaging.ExtractTrace(ctx, msg), msg)

	ctx, span := h.ins.Tracer("notification.inbound.mq").Start(ctx, "OTPDelivery", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	slog.InfoContext(ctx, "consume: otp delivery", "msg_id", msg.ID())

	var payload event.OTPDeliveryMessage
	if err := json.Unmarshal(msg.Body(), &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of otp delivery", "msg_id", msg.ID(), "error", err)
		return nil
	}

	if err := h.uc.DeliverOTP(ctx, usecase.DeliverOTPInput{
		Identity:  payload.Identity,
		Channel:   payload.Channel,
		Code:      payload.Code,
		ExpiresAt: time.Unix(payload.ExpiresAt, 0).UTC(),
	}); err != nil {
		slog.ErrorContext(ctx, "failed to deliver otp", "msg_id", msg.ID(), "channel", payload.Channel, "error", err)
		return err
	}

	return nil
}
