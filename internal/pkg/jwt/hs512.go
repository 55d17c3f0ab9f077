package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTTL = time.Hour

// HS512 signs operator tokens with a shared secret.
type HS512 struct {
	cfg    Config
	parser *jwt.Parser
}

// NewHS512 validates the key length and prepares a parser that pins the
// algorithm, issuer and audience and requires exp.
func NewHS512(cfg Config) (*HS512, error) {
	if len(cfg.Secret) < 64 {
		return nil, ErrSigningKeyTooShort
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if len(cfg.Audiences) > 0 {
		opts = append(opts, jwt.WithAudience(cfg.Audiences...))
	}
	if cfg.Clock != nil {
		opts = append(opts, jwt.WithTimeFunc(cfg.Clock.Now))
	}

	return &HS512{cfg: cfg, parser: jwt.NewParser(opts...)}, nil
}

func (h *HS512) now() time.Time {
	if h.cfg.Clock == nil {
		return time.Now()
	}
	return h.cfg.Clock.Now()
}

func (h *HS512) Generate(subject, role string) (string, error) {
	if role == "" {
		return "", ErrInvalidToken
	}

	now := h.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    h.cfg.Issuer,
			Audience:  h.cfg.Audiences,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(h.cfg.TTL)),
		},
		Role: role,
	}
	if h.cfg.UUID != nil {
		claims.ID = h.cfg.UUID.Generate()
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(h.cfg.Secret)
}

func (h *HS512) Verify(tokenStr string) (Claims, error) {
	var claims Claims
	_, err := h.parser.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (any, error) {
		return h.cfg.Secret, nil
	})

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrTokenExpired
	case err != nil:
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	case claims.Role == "":
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
