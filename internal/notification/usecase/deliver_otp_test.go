package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fakeMail struct {
	sent []mail.Message
	err  error
}

func (m *fakeMail) Send(_ context.Context, msg mail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type smsCall struct{ to, body string }

type fakeSMS struct {
	sent []smsCall
	err  error
}

func (s *fakeSMS) Send(_ context.Context, to, body string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, smsCall{to: to, body: body})
	return nil
}

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestUsecase(t *testing.T) (*Usecase, *fakeMail, *fakeSMS) {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte("app:\n  name: acme\n"))
	require.NoError(t, err)
	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	m, s := &fakeMail{}, &fakeSMS{}
	uc := NewNotification(Dependency{
		Config:     cfg,
		Clock:      fixedClock{now: testNow},
		Validator:  v,
		RepoMail:   m,
		RepoSMS:    s,
		Instrument: instrument.NewNoop(),
	})
	return uc, m, s
}

func TestDeliverOTP_Email(t *testing.T) {
	uc, m, s := newTestUsecase(t)

	err := uc.DeliverOTP(context.Background(), DeliverOTPInput{
		Identity:  "jane@example.com",
		Channel:   "email",
		Code:      "482913",
		ExpiresAt: testNow.Add(5 * time.Minute),
	})
	require.NoError(t, err)

	require.Len(t, m.sent, 1)
	assert.Empty(t, s.sent)
	assert.Equal(t, []string{"jane@example.com"}, m.sent[0].To)
	assert.Equal(t, "acme verification code", m.sent[0].Subject)
	assert.Contains(t, m.sent[0].TextBody, "482913")
	assert.Contains(t, m.sent[0].TextBody, "expires in 5 minute(s)")
}

func TestDeliverOTP_SMS(t *testing.T) {
	uc, m, s := newTestUsecase(t)

	err := uc.DeliverOTP(context.Background(), DeliverOTPInput{
		Identity:  "+14155550100",
		Channel:   "phone",
		Code:      "123456",
		ExpiresAt: testNow.Add(90 * time.Second),
	})
	require.NoError(t, err)

	assert.Empty(t, m.sent)
	require.Len(t, s.sent, 1)
	assert.Equal(t, "+14155550100", s.sent[0].to)
	assert.Equal(t, "123456 is your acme verification code. It expires in 2 min.", s.sent[0].body)
}

func TestDeliverOTP_DropsInvalidInput(t *testing.T) {
	uc, m, s := newTestUsecase(t)

	tests := []struct {
		name string
		in   DeliverOTPInput
	}{
		{name: "bad identity", in: DeliverOTPInput{Identity: "nobody", Channel: "email", Code: "123456"}},
		{name: "bad code", in: DeliverOTPInput{Identity: "+14155550100", Channel: "phone", Code: "12ab56"}},
		{name: "unknown channel", in: DeliverOTPInput{Identity: "+14155550100", Channel: "pigeon", Code: "123456"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, uc.DeliverOTP(context.Background(), tt.in))
		})
	}

	assert.Empty(t, m.sent)
	assert.Empty(t, s.sent)
}

func TestDeliverOTP_SendFailureIsReturned(t *testing.T) {
	uc, m, s := newTestUsecase(t)
	m.err = errors.New("smtp down")
	s.err = errors.New("twilio down")

	err := uc.DeliverOTP(context.Background(), DeliverOTPInput{
		Identity: "jane@example.com", Channel: "email", Code: "123456", ExpiresAt: testNow,
	})
	require.ErrorIs(t, err, m.err)

	err = uc.DeliverOTP(context.Background(), DeliverOTPInput{
		Identity: "+14155550100", Channel: "phone", Code: "123456", ExpiresAt: testNow,
	})
	require.ErrorIs(t, err, s.err)
}

func TestMinutesLeft(t *testing.T) {
	uc, _, _ := newTestUsecase(t)

	assert.Equal(t, 1, uc.minutesLeft(testNow.Add(-time.Minute)))
	assert.Equal(t, 1, uc.minutesLeft(testNow.Add(10*time.Second)))
	assert.Equal(t, 5, uc.minutesLeft(testNow.Add(5*time.Minute)))
}
