package jwt_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

type staticID string

func (s staticID) Generate() string { return string(s) }

func newSigner(t *testing.T, clk *fixedClock) *jwt.HS512 {
	t.Helper()

	s, err := jwt.NewHS512(jwt.Config{
		Secret:    []byte(strings.Repeat("k", 64)),
		Issuer:    "otpgate",
		Audiences: []string{"operators"},
		TTL:       15 * time.Minute,
		Clock:     clk,
		UUID:      staticID("jti-1"),
	})
	require.NoError(t, err)
	return s
}

func TestNewHS512_ShortSecret(t *testing.T) {
	_, err := jwt.NewHS512(jwt.Config{Secret: []byte("short")})
	assert.ErrorIs(t, err, jwt.ErrSigningKeyTooShort)
}

func TestHS512_GenerateVerify(t *testing.T) {
	clk := &fixedClock{t: time.Now().UTC().Truncate(time.Second)}
	s := newSigner(t, clk)

	token, err := s.Generate("alice", "support")
	require.NoError(t, err)

	claims, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "support", claims.Role)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, "jti-1", claims.ID)
}

func TestHS512_Expired(t *testing.T) {
	clk := &fixedClock{t: time.Now().UTC().Truncate(time.Second)}
	s := newSigner(t, clk)

	token, err := s.Generate("alice", "support")
	require.NoError(t, err)

	clk.t = clk.t.Add(time.Hour)
	_, err = s.Verify(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestHS512_EmptyRole(t *testing.T) {
	s := newSigner(t, &fixedClock{t: time.Now()})

	_, err := s.Generate("alice", "")
	assert.ErrorIs(t, err, jwt.ErrInvalidToken)
}

func TestHS512_WrongSecret(t *testing.T) {
	clk := &fixedClock{t: time.Now().UTC()}
	token, err := newSigner(t, clk).Generate("alice", "admin")
	require.NoError(t, err)

	other, err := jwt.NewHS512(jwt.Config{
		Secret:    []byte(strings.Repeat("x", 64)),
		Issuer:    "otpgate",
		Audiences: []string{"operators"},
		Clock:     clk,
		UUID:      staticID("jti-2"),
	})
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.ErrorIs(t, err, jwt.ErrInvalidToken)
}

func TestHS512_WrongAudience(t *testing.T) {
	clk := &fixedClock{t: time.Now().UTC()}
	token, err := newSigner(t, clk).Generate("alice", "admin")
	require.NoError(t, err)

	other, err := jwt.NewHS512(jwt.Config{
		Secret:    []byte(strings.Repeat("k", 64)),
		Issuer:    "otpgate",
		Audiences: []string{"someone-else"},
		Clock:     clk,
	})
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.ErrorIs(t, err, jwt.ErrInvalidToken)
}

func TestHS512_DefaultTTL(t *testing.T) {
	clk := &fixedClock{t: time.Now().UTC().Truncate(time.Second)}
	s, err := jwt.NewHS512(jwt.Config{Secret: []byte(strings.Repeat("k", 64)), Issuer: "otpgate", Clock: clk})
	require.NoError(t, err)

	token, err := s.Generate("alice", "admin")
	require.NoError(t, err)

	claims, err := s.Verify(token)
	require.NoError(t, err)
	assert.WithinDuration(t, clk.t.Add(time.Hour), claims.ExpiresAt.Time, 0)
	assert.Empty(t, claims.ID)
}

func TestGetAuth(t *testing.T) {
	assert.Nil(t, jwt.GetAuth(context.Background()))

	ctx := jwt.SetAuth(context.Background(), jwt.Claims{Role: "admin"})
	require.NotNil(t, jwt.GetAuth(ctx))
	assert.Equal(t, "admin", jwt.GetAuth(ctx).Role)
}
