package port

import (
	"context"
	"time"
)

// RateLimitStore counts admissions per partition inside fixed time windows.
// Increment returns the running count for the window containing "at" and the
// time remaining until that window rolls over.
type RateLimitStore interface {
	Increment(ctx context.Context, partition string, window time.Duration, at time.Time) (count int, expiresIn time.Duration, err error)
}
