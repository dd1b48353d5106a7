package usecase

import "time"

// Clock returns the current time. Services default to UTC wall time; tests
// install a fixed clock.
type Clock func() time.Time

// SystemClock is the production clock.
func SystemClock() time.Time {
	return time.Now().UTC()
}
