package app

import (
	"context"
	"errors"

	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
)

// ErrTokenUsage is returned when subject or role is missing.
var ErrTokenUsage = errors.New("usage: otpgate token <subject> <role>")

// IssueOperatorToken mints a bearer token for the stats and cleanup
// endpoints. Only config and the signer are initialized; no database or
// broker is touched.
func IssueOperatorToken(subject, role string) (string, error) {
	if subject == "" || role == "" {
		return "", ErrTokenUsage
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := &App{ctx: ctx, cancel: cancel, clock: clock.New(), uuid: uid.NewUUID()}
	a.initConfig()
	a.initJWT()
	defer a.config.Close() //nolint:errcheck // process exits right after

	return a.jwt.Generate(subject, role)
}
