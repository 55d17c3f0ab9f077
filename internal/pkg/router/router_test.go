package router_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/jwt"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJWT struct{}

func (fakeJWT) Generate(_, role string) (string, error) { return "token-" + role, nil }

func (fakeJWT) Verify(token string) (jwt.Claims, error) {
	role, ok := strings.CutPrefix(token, "token-")
	if !ok {
		return jwt.Claims{}, jwt.ErrInvalidToken
	}
	return jwt.Claims{Role: role}, nil
}

type enforcerFunc func(rvals ...any) (bool, error)

func (f enforcerFunc) Enforce(rvals ...any) (bool, error) { return f(rvals...) }

type sendResponse struct {
	ExpiresAt string `json:"expiresAt"`
}

func (sendResponse) Message() string { return "OTP sent" }

type fixedUUID string

func (f fixedUUID) Generate() string { return string(f) }

func newRouter(t *testing.T, yaml string, health func(context.Context) error) *router.Router {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(yaml))
	require.NoError(t, err)

	return router.NewRouter(router.Config{
		Config:     cfg,
		UUID:       fixedUUID("generated-cid"),
		JWT:        fakeJWT{},
		Instrument: instrument.NewNoop(),
		Enforcer: enforcerFunc(func(rvals ...any) (bool, error) {
			return rvals[0] == "admin", nil
		}),
		PublicEndpoints: map[string][]string{
			http.MethodPost: {"/otp/send"},
		},
		HealthCheck: health,
	})
}

const noThrottle = `
app:
  server:
    throttle:
      requests_per_minute: 0
`

func do(t *testing.T, h http.Handler, method, path, auth string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(`{}`))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestRouter_Health(t *testing.T) {
	rec, body := do(t, newRouter(t, noThrottle, nil), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "ok", body["message"])
	assert.NotEmpty(t, rec.Header().Get(router.HeaderCorrelationID))

	down := newRouter(t, noThrottle, func(context.Context) error { return errors.New("db down") })
	rec, body = do(t, down, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestRouter_SuccessEnvelope(t *testing.T) {
	r := newRouter(t, noThrottle, nil)
	r.POST("/otp/send", func(*router.Request) (any, error) {
		return sendResponse{ExpiresAt: "2026-01-01T00:00:00Z"}, nil
	})

	rec, body := do(t, r, http.MethodPost, "/otp/send", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{
		"success":   true,
		"message":   "OTP sent",
		"expiresAt": "2026-01-01T00:00:00Z",
	}, body)
}

func TestRouter_ErrorEnvelope(t *testing.T) {
	r := newRouter(t, noThrottle, nil)
	r.POST("/otp/send", func(*router.Request) (any, error) {
		return nil, goerror.NewBusiness("Please wait", goerror.CodeTooManyRequest).With("retryAfter", 42)
	})

	rec, body := do(t, r, http.MethodPost, "/otp/send", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "42", rec.Header().Get("Retry-After"))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Please wait", body["message"])
	assert.InDelta(t, 42, body["retryAfter"], 0)
}

func TestRouter_ValidationEnvelope(t *testing.T) {
	r := newRouter(t, noThrottle, nil)
	r.POST("/otp/send", func(*router.Request) (any, error) {
		verr := validator.V10ValidationError{"identity": "bad"}
		return nil, goerror.NewInvalidInput(verr)
	})

	rec, body := do(t, r, http.MethodPost, "/otp/send", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]any{"identity": "bad"}, body["error"])
}

func TestRouter_UnknownErrorIsInternal(t *testing.T) {
	r := newRouter(t, noThrottle, nil)
	r.POST("/otp/send", func(*router.Request) (any, error) {
		return nil, errors.New("boom")
	})

	rec, body := do(t, r, http.MethodPost, "/otp/send", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", body["message"])
}

func TestRouter_Operator(t *testing.T) {
	r := newRouter(t, noThrottle, nil)
	r.GET("/otp/stats/:identity", func(req *router.Request) (any, error) {
		return map[string]string{"identity": req.GetParam("identity")}, nil
	})

	tests := []struct {
		name string
		auth string
		want int
	}{
		{name: "missing token", auth: "", want: http.StatusUnauthorized},
		{name: "bad token", auth: "Bearer garbage", want: http.StatusUnauthorized},
		{name: "role denied", auth: "Bearer token-support", want: http.StatusForbidden},
		{name: "role allowed", auth: "Bearer token-admin", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := do(t, r, http.MethodGet, "/otp/stats/+14155550100", tt.auth)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRouter_Throttle(t *testing.T) {
	r := newRouter(t, `
app:
  server:
    throttle:
      requests_per_minute: 1
      burst: 1
`, nil)

	rec, _ := do(t, r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body := do(t, r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, false, body["success"])
}

func TestRouter_Recover(t *testing.T) {
	r := newRouter(t, noThrottle, nil)
	r.POST("/otp/send", func(*router.Request) (any, error) {
		panic("unexpected")
	})

	rec, body := do(t, r, http.MethodPost, "/otp/send", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestRouter_NotFound(t *testing.T) {
	rec, body := do(t, newRouter(t, noThrottle, nil), http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "endpoint not found", body["message"])
}

func TestRouter_CorrelationID(t *testing.T) {
	r := newRouter(t, noThrottle, nil)

	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{name: "generated", want: "generated-cid"},
		{name: "echoed", headers: map[string]string{router.HeaderCorrelationID: "abc-123"}, want: "abc-123"},
		{name: "request id", headers: map[string]string{router.HeaderRequestID: "req-9"}, want: "req-9"},
		{name: "with space replaced", headers: map[string]string{router.HeaderCorrelationID: "a b"}, want: "generated-cid"},
		{name: "too long replaced", headers: map[string]string{router.HeaderCorrelationID: strings.Repeat("x", 129)}, want: "generated-cid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Header().Get(router.HeaderCorrelationID))
		})
	}
}

func TestRouter_Maintenance(t *testing.T) {
	r := newRouter(t, noThrottle+`
  maintenance:
    endpoints: "/otp/send"
`, nil)
	r.POST("/otp/send", func(*router.Request) (any, error) { return sendResponse{}, nil })

	rec, body := do(t, r, http.MethodPost, "/otp/send", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "service is under maintenance", body["message"])

	rec, _ = do(t, r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_ThrottleKeysOnForwardedClient(t *testing.T) {
	r := newRouter(t, `
app:
  server:
    throttle:
      requests_per_minute: 1
      burst: 1
`, nil)

	call := func(xff string) int {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("203.0.113.7, 10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("203.0.113.7"))
	assert.Equal(t, http.StatusOK, call("198.51.100.2"))
}

func TestRequest_DecodeBody(t *testing.T) {
	type in struct {
		Identity string `json:"identity"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "ok", body: `{"identity":"a@b.co"}`},
		{name: "unknown field", body: `{"identity":"a@b.co","x":1}`, wantErr: true},
		{name: "trailing data", body: `{"identity":"a@b.co"}{}`, wantErr: true},
		{name: "not json", body: `nope`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &router.Request{Request: httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))}
			var dst in
			err := req.DecodeBody(&dst)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "a@b.co", dst.Identity)
		})
	}
}
