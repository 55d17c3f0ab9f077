package router

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"golang.org/x/time/rate"
)

type throttleConfig struct {
	perMinute int
	burst     int
}

func throttleConfigFrom(cfg config.Config) throttleConfig {
	if cfg == nil {
		return throttleConfig{}
	}
	return throttleConfig{
		perMinute: cfg.GetInt("app.server.throttle.requests_per_minute"),
		burst:     cfg.GetInt("app.server.throttle.burst"),
	}
}

// ipLimiters holds one token bucket per client IP.
type ipLimiters struct {
	limiters    sync.Map // map[string]*rate.Limiter
	limit       rate.Limit
	burst       int
	mu          sync.Mutex
	lastCleanup time.Time
}

func (l *ipLimiters) get(key string) *rate.Limiter {
	if v, ok := l.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}

	v, _ := l.limiters.LoadOrStore(key, rate.NewLimiter(l.limit, l.burst))
	l.sweep()
	return v.(*rate.Limiter)
}

// sweep drops idle buckets, at most once every five minutes.
func (l *ipLimiters) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.lastCleanup) < 5*time.Minute {
		return
	}
	l.lastCleanup = time.Now()

	l.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(l.burst) {
			l.limiters.Delete(key)
		}
		return true
	})
}

// middlewareThrottle limits requests per client IP. It runs after
// middlewareIP so RemoteAddr already holds the real client address.
// A non-positive rate disables it.
func middlewareThrottle(tc throttleConfig) Middleware {
	if tc.perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	l := &ipLimiters{
		limit:       rate.Limit(float64(tc.perMinute) / time.Minute.Seconds()),
		burst:       max(tc.burst, 1),
		lastCleanup: time.Now(),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			limiter := l.get(key)
			if limiter.Allow() {
				next.ServeHTTP(w, r)
				return
			}

			res := limiter.Reserve()
			retryAfter := max(int(res.Delay().Seconds()), 1)
			res.Cancel()

			slog.WarnContext(r.Context(), "throttle: too many requests", "ip", key, "path", r.URL.Path, "retry_after", retryAfter)

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeJSON(w, envelope(false, "Too many requests", map[string]any{"retryAfter": retryAfter}), http.StatusTooManyRequests)
		})
	}
}
