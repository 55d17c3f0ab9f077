package clock

import "time"

// Clocker abstracts the current time.
type Clocker interface {
	Now() time.Time
}

// TimeClocker is the production clock. It reports UTC so persisted
// timestamps compare consistently across hosts.
type TimeClocker struct{}

// New returns a TimeClocker.
func New() *TimeClocker {
	return &TimeClocker{}
}

// Now returns the current time in UTC.
func (*TimeClocker) Now() time.Time {
	return time.Now().UTC()
}
