// Package clock provides the time source used by business logic.
//
// OTP expiry, cooldown and retention decisions all read the time through the
// Clocker interface so tests can pin it.
package clock
