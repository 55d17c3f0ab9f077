package entity

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrRecordConsumed is returned by a guarded write that found the record
	// already consumed.
	ErrRecordConsumed = errors.New("otp record already consumed")
	// ErrRecordLocked is returned by a guarded write that found the record at
	// its attempt limit.
	ErrRecordLocked = errors.New("otp record locked")
)

// Record is one issued challenge for one identity. Only the latest record of
// an identity (created_at DESC, id DESC) is ever evaluated.
type Record struct {
	ID           int64
	Identity     string
	HashedSecret string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	Attempts     int
	Consumed     bool
	ConsumedAt   *time.Time
}

func (r *Record) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// IsLocked uses the post-increment convention: attempts already count the
// failed try that reached the limit.
func (r *Record) IsLocked(maxAttempts int) bool {
	return r.Attempts >= maxAttempts
}

// IdentityKind tells which channel an identity is delivered through.
type IdentityKind string

const (
	IdentityKindPhone IdentityKind = "phone"
	IdentityKindEmail IdentityKind = "email"
)

func KindOf(identity string) IdentityKind {
	if strings.Contains(identity, "@") {
		return IdentityKindEmail
	}
	return IdentityKindPhone
}

// NormalizeIdentity trims the identity and lower-cases emails.
func NormalizeIdentity(identity string) string {
	identity = strings.TrimSpace(identity)
	if KindOf(identity) == IdentityKindEmail {
		return strings.ToLower(identity)
	}
	return identity
}

// MaskIdentity replaces every character but the last two with X.
func MaskIdentity(identity string) string {
	runes := []rune(identity)
	if len(runes) <= 2 {
		return identity
	}
	return strings.Repeat("X", len(runes)-2) + string(runes[len(runes)-2:])
}
