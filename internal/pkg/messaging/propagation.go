package messaging

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// InjectTrace writes the active span context of ctx into headers, so the
// consumer span joins the publisher's trace. headers must be non-nil.
func InjectTrace(ctx context.Context, headers map[string]string) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(headers))
}

// ExtractTrace returns ctx carrying the remote span context found in msg
// headers, if any.
func ExtractTrace(ctx context.Context, msg Message) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, headerCarrier{msg: msg})
}

// headerCarrier is read-only; propagators only call Get on extract.
type headerCarrier struct {
	msg Message
}

func (c headerCarrier) Get(key string) string { return c.msg.Header(key) }

func (headerCarrier) Set(string, string) {}

func (headerCarrier) Keys() []string { return nil }
