package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/rs/cors"
	"github.com/samber/lo"
	"github.com/shandysiswandi/otpgate/internal/otp"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/jwt"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

// operatorModel authorizes an operator role for a route pattern and method.
const operatorModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act)
`

// fatal logs and exits. Startup has no partial mode: every dependency is
// needed before the server may listen.
func fatal(msg string, err error, args ...any) {
	slog.Error(msg, append(args, "error", err)...)
	os.Exit(1)
}

func (a *App) initConfig() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "/config/config.yaml"
		if os.Getenv("LOCAL") == "true" {
			path = "./config/config.yaml"
		}
	}

	cfg, err := config.NewViper(path)
	if err != nil {
		fatal("failed to init config", err, "path", path)
	}

	if tz := cfg.GetString("app.tz"); tz != "" {
		//nolint:errcheck,gosec // ignore error
		os.Setenv("TZ", tz)
	}

	a.config = cfg
}

func (a *App) initInstrument() {
	ins, err := instrument.New(a.ctx, &instrument.Config{
		Enabled:           a.config.GetBool("instrument.enabled"),
		ServiceName:       a.config.GetString("instrument.service_name"),
		ServiceVersion:    a.config.GetString("instrument.service_version"),
		Environment:       a.config.GetString("instrument.env"),
		OTLPEndpoint:      a.config.GetString("instrument.otlp_endpoint"),
		OTLPSecure:        a.config.GetBool("instrument.otlp_secure"),
		TraceSampleRatio:  a.config.GetFloat64("instrument.trace_sample_ratio"),
		MetricsInterval:   a.config.GetSecond("instrument.metric_interval_seconds"),
		MaskFields:        a.config.GetArray("instrument.log_mask_fields"),
		PartialMaskFields: a.config.GetArray("instrument.log_partial_mask_fields"),
		LogLevel:          a.config.GetString("instrument.log_level"),
	})
	if err != nil {
		fatal("failed to init instrumentation", err)
	}
	a.ins = ins
}

func (a *App) initLibraries() {
	a.clock = clock.New()
	a.uuid = uid.NewUUID()
	a.goroutine = goroutine.NewManager(a.config.GetInt("app.server.max_goroutine"))

	// Rotating this key invalidates every outstanding code.
	hmac, err := hash.NewHMACSHA256(a.config.GetString("modules.otp.secret"))
	if err != nil {
		fatal("failed to init otp hmac, OTP_SECRET must be set", err)
	}
	a.hmac = hmac

	v10, err := validator.NewV10Validator()
	if err != nil {
		fatal("failed to init validation v10 validator", err)
	}
	a.validator = v10

	snow, err := uid.NewSnowflake()
	if err != nil {
		fatal("failed to init uid number snowflake", err)
	}
	a.uid = snow
}

func (a *App) initJWT() {
	operatorJWT, err := jwt.NewHS512(jwt.Config{
		Secret:    []byte(a.config.GetString("jwt.secret")),
		Issuer:    a.config.GetString("jwt.issuer"),
		Audiences: a.config.GetArray("jwt.audiences"),
		TTL:       a.config.GetMinute("jwt.ttl_minutes"),
		Clock:     a.clock,
		UUID:      a.uuid,
	})
	if err != nil {
		fatal("failed to init jwt token", err)
	}
	a.jwt = operatorJWT
}

func (a *App) initCasbin() {
	m, err := model.NewModelFromString(operatorModel)
	if err != nil {
		fatal("failed to create model casbin", err)
	}

	// policies live in config only, so no adapter is attached
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		fatal("failed to init casbin", err)
	}

	policies := operatorPolicies(a.config.GetArray("operator.policies"))
	if len(policies) > 0 {
		if _, err := e.AddPolicies(policies); err != nil {
			fatal("failed to load operator policies", err)
		}
	}
	slog.Info("operator policies loaded", "count", len(policies))

	a.casbin = e
}

// operatorPolicies parses "role:path:method" entries. The path may itself
// contain ':' (route params), so role ends at the first colon and method
// starts after the last one.
func operatorPolicies(raw []string) [][]string {
	return lo.FilterMap(raw, func(item string, _ int) ([]string, bool) {
		role, rest, ok := strings.Cut(strings.TrimSpace(item), ":")
		if !ok {
			return nil, false
		}
		i := strings.LastIndex(rest, ":")
		if i < 0 {
			return nil, false
		}
		path, method := rest[:i], strings.ToUpper(rest[i+1:])
		if role == "" || path == "" || method == "" {
			return nil, false
		}
		return []string{role, path, method}, true
	})
}

func (a *App) initHTTPServer() {
	a.router = router.NewRouter(router.Config{
		Config:          a.config,
		UUID:            a.uuid,
		JWT:             a.jwt,
		Instrument:      a.ins,
		Enforcer:        a.casbin,
		PublicEndpoints: otp.PublicEndpoints,
		HealthCheck: func(ctx context.Context) error {
			return a.dbConn.Ping(ctx)
		},
	})

	handler := cors.New(cors.Options{
		AllowedOrigins:   a.config.GetArray("app.server.cors"),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Correlation-ID"},
		ExposedHeaders:   []string{"Retry-After", "X-Correlation-ID"},
		AllowCredentials: true,
	}).Handler(a.router)

	a.httpServer = &http.Server{
		Addr:              a.config.GetString("app.server.http.address"),
		Handler:           handler,
		ReadTimeout:       a.config.GetSecond("app.server.http.read_timeout_seconds"),
		ReadHeaderTimeout: a.config.GetSecond("app.server.http.read_header_timeout_seconds"),
		WriteTimeout:      a.config.GetSecond("app.server.http.write_timeout_seconds"),
		IdleTimeout:       a.config.GetSecond("app.server.http.idle_timeout_seconds"),
	}
}

// initClosers lists resources in release order: producers of work first,
// then the stores they write to.
func (a *App) initClosers() {
	a.closers = []struct {
		name string
		fn   func(context.Context) error
	}{
		{name: "Messaging", fn: func(context.Context) error { return a.messaging.Close() }},
		{name: "Mail", fn: func(context.Context) error { return a.mail.Close() }},
		{name: "Redis", fn: func(context.Context) error { return a.cacheConn.Close() }},
		{name: "Database", fn: func(context.Context) error {
			a.dbConn.Close()
			return nil
		}},
		{name: "Storage", fn: func(context.Context) error {
			if a.storage == nil {
				return nil
			}
			return a.storage.Close()
		}},
		{name: "Instrument", fn: func(ctx context.Context) error { return a.ins.Shutdown(ctx) }},
		{name: "Config", fn: func(context.Context) error { return a.config.Close() }},
	}
}
