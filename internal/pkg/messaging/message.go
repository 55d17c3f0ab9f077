package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/stacktrace"
	"go.uber.org/atomic"
)

// message adapts a broker delivery. ack and nack run at most once in total.
type message struct {
	body      []byte
	headers   map[string]string
	id        string
	topic     string
	timestamp time.Time

	ack  func(ctx context.Context) error
	nack func(ctx context.Context) error

	responded atomic.Bool
}

func (m *message) Body() []byte { return m.body }
func (m *message) Header(k string) string { return m.headers[k] }
func (m *message) ID() string { return m.id }
func (m *message) Topic() string { return m.topic }
func (m *message) Timestamp() time.Time { return m.timestamp }

func (m *message) Ack(ctx context.Context) error {
	return m.respond(ctx, m.ack)
}

func (m *message) Nack(ctx context.Context) error {
	return m.respond(ctx, m.nack)
}

func (m *message) respond(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.responded.Swap(true) || fn == nil {
		return nil
	}
	return fn(ctx)
}

// dispatch runs handler with panic recovery and applies auto ack.
func dispatch(ctx context.Context, kind string, msg *message, handler Handler, autoAck bool) error {
	herr := safeHandle(ctx, kind, msg, handler)

	if !autoAck || msg.responded.Load() {
		return herr
	}
	if herr == nil {
		return msg.Ack(ctx)
	}
	return msg.Nack(ctx)
}

// safeHandle turns a handler panic into an error so the message is nacked
// and the consumer loop survives.
func safeHandle(ctx context.Context, kind string, msg *message, handler Handler) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			slog.ErrorContext(ctx, "panic in messaging handler",
				"kind", kind, "topic", msg.topic, "message_id", msg.id, "panic", rvr, "stack", stacktrace.Frames())
			err = fmt.Errorf("messaging: panic in %s handler: %v", kind, rvr)
		}
	}()
	return handler(ctx, msg)
}
