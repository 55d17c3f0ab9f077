package app

import (
	"log/slog"

	"github.com/shandysiswandi/otpgate/internal/notification"
	"github.com/shandysiswandi/otpgate/internal/otp"
)

// initModules mounts the otp endpoints and, unless delivery runs in a
// separate deployment, the notification consumers in this process.
func (a *App) initModules() {
	if err := otp.New(otp.Dependency{
		Ctx:        a.ctx,
		DBConn:     a.dbConn,
		Locker:     a.locker,
		Goroutine:  a.goroutine,
		Router:     a.router,
		Messaging:  a.messaging,
		Config:     a.config,
		Instrument: a.ins,
		UID:        a.uid,
		HMAC:       a.hmac,
		Clock:      a.clock,
		Validator:  a.validator,
		Storage:    a.storage,
	}); err != nil {
		fatal("failed to init module otp", err)
	}

	if !a.config.GetBool("modules.notification.enabled") {
		slog.Info("notification module disabled, otp delivery is left to another consumer")
		return
	}
	if err := notification.New(notification.Dependency{
		Ctx:        a.ctx,
		Messaging:  a.messaging,
		Config:     a.config,
		Instrument: a.ins,
		UUID:       a.uuid,
		Clock:      a.clock,
		Goroutine:  a.goroutine,
		Validator:  a.validator,
		Mail:       a.mail,
	}); err != nil {
		fatal("failed to init module notification", err)
	}
}
