package inbound

import "time"

type SendRequest struct {
	Identity string `json:"identity"`
}

type SendResponse struct {
	ExpiresAt      time.Time `json:"expiresAt"`
	MaskedIdentity string    `json:"maskedIdentity"`
	DevCode        string    `json:"devCode,omitempty"`
}

func (SendResponse) Message() string { return "OTP sent successfully" }

type VerifyRequest struct {
	Identity string `json:"identity"`
	OTP      string `json:"otp"`
}

type VerifyResponse struct {
	VerifiedAt time.Time `json:"verifiedAt"`
}

func (VerifyResponse) Message() string { return "OTP verified successfully" }

type StatsData struct {
	Identity    string     `json:"identity"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"maxAttempts"`
	Locked      bool       `json:"locked"`
	Consumed    bool       `json:"consumed"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	ConsumedAt  *time.Time `json:"consumedAt"`
}

type StatsResponse struct {
	Data StatsData `json:"data"`
}

func (StatsResponse) Message() string { return "OTP stats" }

type CleanupResponse struct {
	DeletedCount       int64 `json:"deletedCount"`
	AuditPurgedCount   int64 `json:"auditPurgedCount"`
	AuditArchivedCount int   `json:"auditArchivedCount"`
}

func (CleanupResponse) Message() string { return "Expired OTP records cleaned up" }
