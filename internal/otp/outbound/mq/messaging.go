package mq

import (
	"context"
	"encoding/json"

	"github.com/shandysiswandi/otpgate/internal/otp/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Messaging publishes delivery requests for the notification consumers.
type Messaging struct {
	client messaging.Messaging
	ins    instrument.Instrumentation
}

func NewMessaging(client messaging.Messaging, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, ins: ins}
}

// PublishDelivery keys the message by identity so brokers that partition
// (kafka, pubsub ordering) keep one identity's codes in order.
func (m *Messaging) PublishDelivery(ctx context.Context, msg usecase.DeliveryEvent) (err error) {
	ctx, span := m.ins.Tracer("otp.outbound.mq").Start(ctx, "PublishDelivery",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", event.OTPDeliveryDestination),
			attribute.String("otp.channel", string(msg.Channel)),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	body, err := json.Marshal(event.OTPDeliveryMessage{
		Identity:  msg.Identity,
		Channel:   string(msg.Channel),
		Code:      msg.Code,
		ExpiresAt: msg.ExpiresAt.Unix(),
	})
	if err != nil {
		return err
	}

	headers := map[string]string{event.HeaderCorrelationID: instrument.GetCorrelationID(ctx)}
	messaging.InjectTrace(ctx, headers)

	return m.client.Publish(ctx, event.OTPDeliveryDestination, messaging.OutgoingMessage{
		Body:    body,
		Key:     []byte(msg.Identity),
		Headers: headers,
	})
}
