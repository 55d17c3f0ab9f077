package inbound

import (
	"github.com/shandysiswandi/otpgate/internal/otp/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
)

type HTTPEndpoint struct {
	uc uc
}

// Send issues a new code for the identity in the body.
func (h *HTTPEndpoint) Send(r *router.Request) (any, error) {
	var req SendRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	out, err := h.uc.Issue(r.Context(), usecase.IssueInput{Identity: req.Identity})
	if err != nil {
		return nil, err
	}

	return SendResponse{
		ExpiresAt:      out.ExpiresAt,
		MaskedIdentity: out.MaskedIdentity,
		DevCode:        out.DevCode,
	}, nil
}

// Verify checks a submitted code against the latest record of the identity.
func (h *HTTPEndpoint) Verify(r *router.Request) (any, error) {
	var req VerifyRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	out, err := h.uc.Verify(r.Context(), usecase.VerifyInput{Identity: req.Identity, Code: req.OTP})
	if err != nil {
		return nil, err
	}

	return VerifyResponse{VerifiedAt: out.VerifiedAt}, nil
}

// Stats reports the latest record of an identity. Operator only.
func (h *HTTPEndpoint) Stats(r *router.Request) (any, error) {
	out, err := h.uc.Stats(r.Context(), usecase.StatsInput{Identity: r.GetParam("identity")})
	if err != nil {
		return nil, err
	}

	return StatsResponse{Data: StatsData{
		Identity:    out.Identity,
		Attempts:    out.Attempts,
		MaxAttempts: out.MaxAttempts,
		Locked:      out.Locked,
		Consumed:    out.Consumed,
		ExpiresAt:   out.ExpiresAt,
		CreatedAt:   out.CreatedAt,
		ConsumedAt:  out.ConsumedAt,
	}}, nil
}

// Cleanup removes expired records and purges old audit entries. Operator only.
func (h *HTTPEndpoint) Cleanup(r *router.Request) (any, error) {
	out, err := h.uc.Cleanup(r.Context())
	if err != nil {
		return nil, err
	}

	return CleanupResponse{
		DeletedCount:       out.DeletedCount,
		AuditPurgedCount:   out.AuditPurgedCount,
		AuditArchivedCount: out.AuditArchivedCount,
	}, nil
}
