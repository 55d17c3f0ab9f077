package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// OTP payloads are a few dozen bytes; anything bigger is logged truncated.
const maxLoggedBody = 4 << 10

// bodyTap keeps the first maxLoggedBody bytes written to it.
type bodyTap struct {
	buf       bytes.Buffer
	truncated bool
}

func (t *bodyTap) Write(p []byte) (int, error) {
	room := maxLoggedBody - t.buf.Len()
	if len(p) > room {
		p = p[:max(room, 0)]
		t.truncated = true
	}
	t.buf.Write(p)
	return len(p), nil
}

// loggable renders the tapped bytes for a log attribute: masked JSON when
// possible, plain text otherwise.
func (t *bodyTap) loggable(masker instrument.Masker) any {
	raw := t.buf.Bytes()
	if len(raw) == 0 {
		return nil
	}

	var out any
	var decoded any
	switch {
	case json.Unmarshal(raw, &decoded) == nil:
		out = masker.Data(decoded)
	case utf8.Valid(raw):
		out = string(raw)
	default:
		out = "<binary body omitted>"
	}

	if t.truncated {
		return map[string]any{"body": out, "truncated": true}
	}
	return out
}

// observedWriter records what the handler answered. endpoint() reports the
// handler error through SetError so the span can carry it.
type observedWriter struct {
	http.ResponseWriter
	status  int
	written int
	tap     bodyTap
	err     error
}

func (w *observedWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *observedWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	//nolint:errcheck // the tap never fails
	w.tap.Write(p)
	n, err := w.ResponseWriter.Write(p)
	w.written += n
	return n, err
}

func (w *observedWriter) SetError(err error) { w.err = err }

func (w *observedWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *observedWriter) statusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

type httpMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func newHTTPMetrics(meter metric.Meter) httpMetrics {
	var m httpMetrics
	var err error

	m.requests, err = meter.Int64Counter("http.server.requests",
		metric.WithDescription("Number of HTTP requests received"))
	if err != nil {
		slog.Error("failed to create http request counter", "error", err)
	}

	m.duration, err = meter.Float64Histogram("http.server.duration",
		metric.WithDescription("HTTP request duration"), metric.WithUnit("ms"))
	if err != nil {
		slog.Error("failed to create http duration histogram", "error", err)
	}
	return m
}

func (m httpMetrics) record(ctx context.Context, elapsed time.Duration, attrs ...attribute.KeyValue) {
	set := metric.WithAttributes(attrs...)
	if m.requests != nil {
		m.requests.Add(ctx, 1, set)
	}
	if m.duration != nil {
		m.duration.Record(ctx, float64(elapsed)/float64(time.Millisecond), set)
	}
}

func matchedRoutePath(r *http.Request) string {
	if pattern := httprouter.ParamsFromContext(r.Context()).MatchedRoutePath(); pattern != "" {
		return pattern
	}
	return r.URL.Path
}

func newMasker(cfg config.Config) instrument.Masker {
	if cfg == nil {
		return instrument.Masker{}
	}
	return instrument.NewMasker(
		cfg.GetArray("instrument.log_mask_fields"),
		cfg.GetArray("instrument.log_partial_mask_fields"),
	)
}

func maskHeaders(headers http.Header, masker instrument.Masker) http.Header {
	if !masker.Enabled() {
		return headers
	}
	out := headers.Clone()
	for key := range out {
		if v, ok := masker.Key(key, out.Get(key)); ok {
			out.Set(key, v)
		}
	}
	return out
}

// tapRequestBody copies the head of the body for logging and leaves the
// full stream readable for the handler.
func tapRequestBody(r *http.Request) *bodyTap {
	tap := &bodyTap{}
	if r.Body == nil || r.Body == http.NoBody {
		return tap
	}
	//nolint:errcheck // best effort for logging only
	head, _ := io.ReadAll(io.LimitReader(r.Body, maxLoggedBody+1))
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(head), r.Body))
	//nolint:errcheck // the tap never fails
	tap.Write(head)
	return tap
}

// spanStatus follows the server-span convention: 4xx answers are the
// caller's problem (a wrong code, a cooldown) and leave the span unset.
func spanStatus(span trace.Span, status int, err error) {
	if err != nil {
		span.RecordError(err)
	}
	if status < http.StatusInternalServerError {
		return
	}
	desc := http.StatusText(status)
	if err != nil {
		desc = err.Error()
	}
	span.SetStatus(codes.Error, desc)
}

func middlewareObservability(cfg config.Config, ins instrument.Instrumentation) Middleware {
	masker := newMasker(cfg)
	tracer := ins.Tracer("http.server")
	metrics := newHTTPMetrics(ins.Meter("http.server"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			route := matchedRoutePath(r)

			ctx, span := tracer.Start(r.Context(), r.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.HTTPRouteKey.String(route),
					semconv.URLPath(r.URL.Path),
					semconv.ClientAddress(r.RemoteAddr),
					semconv.UserAgentOriginal(r.UserAgent()),
				),
			)
			defer span.End()

			reqTap := tapRequestBody(r)
			slog.InfoContext(ctx, "request received",
				"method", r.Method,
				"path", route,
				"client_ip", r.RemoteAddr,
				"headers", maskHeaders(r.Header, masker),
				"body", reqTap.loggable(masker),
			)

			ow := &observedWriter{ResponseWriter: w}
			next.ServeHTTP(ow, r.WithContext(ctx))

			status := ow.statusCode()
			elapsed := time.Since(start)

			spanStatus(span, status, ow.err)
			span.SetAttributes(
				semconv.HTTPResponseStatusCode(status),
				semconv.HTTPResponseBodySize(ow.written),
			)
			metrics.record(ctx, elapsed,
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.HTTPRouteKey.String(route),
				semconv.HTTPResponseStatusCode(status),
			)

			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			slog.Log(ctx, level, "response sent",
				"method", r.Method,
				"path", route,
				"status", status,
				"bytes", ow.written,
				"latency_ms", elapsed.Milliseconds(),
				"body", ow.tap.loggable(masker),
			)
		})
	}
}
