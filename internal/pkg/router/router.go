package router

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"maps"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/jwt"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

// Handler is the application-style handler used by this router.
//
// It returns a response payload whose JSON fields are merged into the
// success envelope, or an error rendered by the error codec.
type Handler func(r *Request) (any, error)

// Enforcer decides whether a subject may act on an object.
// *casbin.Enforcer satisfies it.
type Enforcer interface {
	Enforce(rvals ...any) (bool, error)
}

// Config holds dependencies required to build a Router.
type Config struct {
	// Config provides runtime configuration values.
	Config config.Config
	// UUID generates request correlation IDs.
	UUID uid.StringID
	// JWT validates operator tokens.
	JWT jwt.JWT
	// Enforcer authorizes operator roles per route.
	Enforcer Enforcer
	// Instrument provides tracing and metrics helpers.
	Instrument instrument.Instrumentation
	// PublicEndpoints maps a method to routes served without a token.
	PublicEndpoints map[string][]string
	// HealthCheck reports readiness for GET /health. Nil means always healthy.
	HealthCheck func(ctx context.Context) error
}

// Router is an http.Handler that wraps httprouter and a middleware chain.
type Router struct {
	hr  *httprouter.Router
	mws []Middleware
}

// NewRouter builds the application router with the standard middleware chain.
func NewRouter(cfg Config) *Router {
	hr := &httprouter.Router{
		RedirectTrailingSlash:  true,
		RedirectFixedPath:      true,
		HandleMethodNotAllowed: true,
		HandleOPTIONS:          true,
		SaveMatchedRoutePath:   true,
		NotFound: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, envelope(false, "endpoint not found", nil), http.StatusNotFound)
		}),
		MethodNotAllowed: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, envelope(false, "method not allowed", nil), http.StatusMethodNotAllowed)
		}),
	}

	public := map[string]map[string]struct{}{
		http.MethodGet: {"/": {}, "/health": {}},
	}
	for method, paths := range cfg.PublicEndpoints {
		if public[method] == nil {
			public[method] = make(map[string]struct{}, len(paths))
		}
		for _, p := range paths {
			public[method][p] = struct{}{}
		}
	}

	throttle := throttleConfigFrom(cfg.Config)

	ro := &Router{
		hr: hr,
		mws: []Middleware{
			middlewareRecoverer,
			middlewareIP,
			middlewareCorrelationID(cfg.UUID),
			middlewareObservability(cfg.Config, cfg.Instrument),
			middlewareMaintenance(cfg.Config),
			middlewareThrottle(throttle),
			middlewareOperator(cfg.JWT, cfg.Enforcer, public),
		},
	}

	ro.GET("/", func(*Request) (any, error) {
		return message("Welcome to otpgate"), nil
	})
	ro.GET("/health", func(r *Request) (any, error) {
		if cfg.HealthCheck != nil {
			if err := cfg.HealthCheck(r.Context()); err != nil {
				slog.WarnContext(r.Context(), "health check failed", "error", err)
				return nil, goerror.NewBusiness("Service unavailable", goerror.CodeUnavailable)
			}
		}
		return message("ok"), nil
	})

	return ro
}

type message string

func (m message) Message() string { return string(m) }

// GET registers a GET endpoint using the application Handler signature.
func (r *Router) GET(path string, h Handler, mws ...Middleware) {
	r.endpoint(http.MethodGet, path, h, mws...)
}

// POST registers a POST endpoint using the application Handler signature.
func (r *Router) POST(path string, h Handler, mws ...Middleware) {
	r.endpoint(http.MethodPost, path, h, mws...)
}

func (r *Router) endpoint(method, path string, h Handler, mws ...Middleware) {
	r.hr.Handler(method, path, Chain(http.HandlerFunc(func(w http.ResponseWriter, re *http.Request) {
		resp, err := h(&Request{Request: re})
		if err != nil {
			if setter, ok := w.(interface{ SetError(error) }); ok {
				setter.SetError(err)
			}
			encodeError(re.Context(), w, err)
			return
		}
		encodeOK(w, resp)
	}), append(r.mws, mws...)...))
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.hr.ServeHTTP(w, req)
}

func envelope(success bool, msg string, fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields)+2)
	maps.Copy(out, fields)
	out["success"] = success
	out["message"] = msg
	return out
}

func encodeError(ctx context.Context, w http.ResponseWriter, err error) {
	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		slog.ErrorContext(ctx, "unhandled error reached the router", "error", err)
		writeJSON(w, envelope(false, "Internal server error", nil), http.StatusInternalServerError)
		return
	}

	fields := gerr.Details()

	var errValidate validator.V10ValidationError
	if errors.As(err, &errValidate) {
		fields = maps.Clone(fields)
		if fields == nil {
			fields = map[string]any{}
		}
		fields["error"] = errValidate.Values()
	}

	status := gerr.StatusCode()
	if status == http.StatusTooManyRequests {
		if ra, ok := fields["retryAfter"].(int); ok && ra > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(ra))
		}
	}

	writeJSON(w, envelope(false, gerr.Msg(), fields), status)
}

// encodeOK flattens the JSON object form of resp next to success and message.
// A resp implementing Message() string supplies the message.
func encodeOK(w http.ResponseWriter, resp any) {
	msg := "request has been successfully"
	if m, ok := resp.(interface{ Message() string }); ok {
		msg = m.Message()
	}

	var fields map[string]any
	if resp != nil {
		if _, isMsg := resp.(message); !isMsg {
			b, err := json.Marshal(resp)
			if err == nil {
				err = json.Unmarshal(b, &fields)
			}
			if err != nil {
				slog.Error("server: response is not a json object", "error", err)
				writeJSON(w, envelope(false, "Internal server error", nil), http.StatusInternalServerError)
				return
			}
		}
	}

	writeJSON(w, envelope(true, msg, fields), http.StatusOK)
}

func writeJSON(w http.ResponseWriter, data any, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("server: failed to encode data to json", "error", err)
	}
}
