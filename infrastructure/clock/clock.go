package clock

import "time"

// Clock provides the current time to the components that compare block
// timestamps against the local time.
type Clock interface {
	Now() time.Time
}

// SystemClock is a Clock backed by the local system time
type SystemClock struct{}

// Now returns the local system time
func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock is a Clock that always returns the same time
type FixedClock time.Time

// Now returns the fixed time
func (c FixedClock) Now() time.Time {
	return time.Time(c)
}
