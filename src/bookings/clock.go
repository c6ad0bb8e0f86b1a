package bookings

import "time"

// Clock supplies "now" so the lead-time and lockout rules are testable
// against fixed instants.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
