package inbound

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/lo"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
)

type consumer struct {
	// name doubles as channel, queue group, group and subscription.
	name    string
	topic   string
	handler messaging.Handler
}

// RegisterMQConsumer starts the consumers listed in
// modules.notification.consumer_names. Each runs until ctx is cancelled.
func RegisterMQConsumer(
	ctx context.Context,
	cfg config.Config,
	routine *goroutine.Manager,
	messenger messaging.Messaging,
	uuid uid.StringID,
	uc uc,
	ins instrument.Instrumentation,
) {
	h := &MQHandler{uc: uc, uuid: uuid, ins: ins}

	enabled := cfg.GetArray("modules.notification.consumer_names")
	concurrency := max(1, cfg.GetInt("modules.notification.consumer_concurrency"))

	consumers := []consumer{
		{name: event.OTPDeliveryConsumerNotification, topic: event.OTPDeliveryDestination, handler: h.OTPDelivery},
	}

	for _, c := range lo.Filter(consumers, func(c consumer, _ int) bool { return lo.Contains(enabled, c.name) }) {
		// Consume runs on ctx: tasks of the manager are detached from cancellation.
		routine.Go(ctx, func(context.Context) error {
			slog.InfoContext(ctx, "starting consumer", "consumer", c.name, "topic", c.topic, "concurrency", concurrency)
			err := messenger.Consume(ctx, c.topic, c.handler,
				messaging.WithChannel(c.name),
				messaging.WithQueueGroup(c.name),
				messaging.WithGroup(c.name),
				messaging.WithSubscription(c.name),
				messaging.WithAutoAck(true),
				messaging.WithConcurrency(concurrency),
				messaging.WithMaxInFlight(concurrency),
			)
			if errors.Is(err, context.Canceled) {
				slog.InfoContext(ctx, "consumer stopped", "consumer", c.name)
				return nil
			}
			if err != nil {
				slog.ErrorContext(ctx, "consumer failed", "consumer", c.name, "error", err)
			}
			return err
		})
	}
}
