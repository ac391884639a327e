// Package monotime exposes a process-local monotonic clock in nanoseconds.
package monotime

import "time"

// origin anchors the monotonic reading carried by time.Time.
var origin = time.Now()

// Now returns nanoseconds elapsed on the monotonic clock since process start.
// Values are comparable only within the same process.
func Now() int64 {
	return int64(time.Since(origin))
}

// Clock is the default monotonic clock; its zero value is ready to use.
type Clock struct{}

// Now implements choreographer.Clock.
func (Clock) Now() int64 { return Now() }
