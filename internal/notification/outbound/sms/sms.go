// Package sms sends text messages through the Twilio Messages REST API.
package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"go.opentelemetry.io/otel/codes"
)

const defaultBaseURL = "https://api.twilio.com"

var (
	// ErrNotConfigured is returned by Send when credentials are missing.
	ErrNotConfigured = errors.New("sms: twilio credentials are not configured")
)

// Config configures the Twilio client. BaseURL is overridable for tests.
type Config struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
	// Attempts bounds the number of tries for a retryable failure.
	Attempts   uint64
	Backoff    time.Duration
	HTTPClient *http.Client
}

type SMS struct {
	cfg    Config
	client *http.Client
	ins    instrument.Instrumentation
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func New(cfg Config, ins instrument.Instrumentation) *SMS {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &SMS{cfg: cfg, client: client, ins: ins}
}

// Send posts body to the Twilio API. Network errors, 429 and 5xx responses
// are retried with exponential backoff; other 4xx responses fail at once.
func (s *SMS) Send(ctx context.Context, to, body string) (err error) {
	ctx, span := s.ins.Tracer("notification.outbound.sms").Start(ctx, "Send")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if s.cfg.AccountSID == "" || s.cfg.AuthToken == "" || s.cfg.From == "" {
		return ErrNotConfigured
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.cfg.From)
	form.Set("Body", body)
	payload := form.Encode()

	b := retry.NewExponential(s.cfg.Backoff)
	b = retry.WithMaxRetries(s.cfg.Attempts-1, b)

	return retry.Do(ctx, b, func(ctx context.Context) error {
		return s.post(ctx, payload)
	})
}

func (s *SMS) post(ctx context.Context, payload string) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.cfg.BaseURL, url.PathEscape(s.cfg.AccountSID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return retry.RetryableError(fmt.Errorf("sms: twilio request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		//nolint:errcheck // drain for connection reuse
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	var apiErr apiError
	//nolint:errcheck // the status code is enough when the body is not json
	json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&apiErr)

	err = fmt.Errorf("sms: twilio status %d: code %d: %s", resp.StatusCode, apiErr.Code, apiErr.Message)
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return retry.RetryableError(err)
	}
	return err
}
