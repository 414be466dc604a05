package domain

import "time"

// Rate limit window kinds. Both windows are tracked concurrently per user.
const (
	WindowMinute = "minute"
	WindowDay    = "day"
)

// RateLimitWindow is a fixed time bucket with a monotonically increasing
// request counter, keyed by (user, kind, window start).
type RateLimitWindow struct {
	ID           string
	UserID       string
	WindowKind   string
	WindowStart  time.Time
	RequestCount int
}
