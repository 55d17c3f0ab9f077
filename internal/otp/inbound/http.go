package inbound

import (
	"context"
	"net/http"

	"github.com/shandysiswandi/otpgate/internal/otp/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
)

type uc interface {
	Issue(ctx context.Context, in usecase.IssueInput) (*usecase.IssueOutput, error)
	Verify(ctx context.Context, in usecase.VerifyInput) (*usecase.VerifyOutput, error)
	Stats(ctx context.Context, in usecase.StatsInput) (*usecase.StatsOutput, error)
	Cleanup(ctx context.Context) (*usecase.CleanupOutput, error)
}

// PublicEndpoints are served without an operator token.
var PublicEndpoints = map[string][]string{
	http.MethodPost: {"/otp/send", "/otp/verify"},
}

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	r.POST("/otp/send", end.Send)
	r.POST("/otp/verify", end.Verify)

	r.GET("/otp/stats/:identity", end.Stats)
	r.POST("/otp/cleanup", end.Cleanup)
}
