package jwt

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrSigningKeyTooShort is returned for an HS512 key under 64 bytes.
	ErrSigningKeyTooShort = errors.New("jwt: HS512 signing key must be at least 64 bytes")
	// ErrTokenExpired is returned for a token past its exp claim.
	ErrTokenExpired = errors.New("jwt: token has expired")
	// ErrInvalidToken wraps every other verification failure, and is
	// returned by Generate for a token without a role.
	ErrInvalidToken = errors.New("jwt: invalid token")
)

// JWT generates and verifies operator tokens.
type JWT interface {
	// Generate creates a signed token for subject acting as role.
	Generate(subject, role string) (string, error)
	// Verify parses and validates the token and returns claims.
	Verify(tokenStr string) (Claims, error)
}

// Claims are the registered claims plus the operator role.
type Claims struct {
	jwt.RegisteredClaims
	// Role is the authorization subject, e.g. "support" or "admin".
	Role string `json:"role"`
}

// Config defines the inputs for building a JWT implementation.
type Config struct {
	Secret    []byte
	Issuer    string
	Audiences []string
	// TTL defaults to one hour.
	TTL time.Duration
	// Clock and UUID supply iat/exp and jti.
	Clock interface{ Now() time.Time }
	UUID  interface{ Generate() string }
}

type claimsKey struct{}

// GetAuth returns the operator claims stored by the router, or nil on
// public routes.
func GetAuth(ctx context.Context) *Claims {
	clm, ok := ctx.Value(claimsKey{}).(Claims)
	if !ok {
		return nil
	}
	return &clm
}

// SetAuth stores verified claims on ctx.
func SetAuth(ctx context.Context, clm Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, clm)
}
