package entity

import (
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/valueobject"
)

type EventType string

const (
	EventIssueSuccess  EventType = "ISSUE_SUCCESS"
	EventIssueFailed   EventType = "ISSUE_FAILED"
	EventIssueError    EventType = "ISSUE_ERROR"
	EventVerifySuccess EventType = "VERIFY_SUCCESS"
	EventVerifyFailed  EventType = "VERIFY_FAILED"
	EventVerifyError   EventType = "VERIFY_ERROR"
)

func (e EventType) String() string { return string(e) }

// Audit status tags. They double as the outcome attribute of the counters.
const (
	StatusSent            = "sent"
	StatusInvalidFormat   = "invalid_format"
	StatusRateLimited     = "rate_limited"
	StatusLocked          = "locked"
	StatusStoreError      = "store_error"
	StatusVerified        = "verified"
	StatusNotFound        = "not_found"
	StatusConsumed        = "consumed"
	StatusExpired         = "expired"
	StatusIncorrect       = "incorrect"
	StatusInternalFailure = "internal_error"
)

// AuditEntry is append-only; it shares nothing with Record but the identity.
type AuditEntry struct {
	ID        int64               `json:"id"`
	EventType EventType           `json:"eventType"`
	Identity  string              `json:"identity"`
	Status    string              `json:"status"`
	Details   valueobject.JSONMap `json:"details,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}
