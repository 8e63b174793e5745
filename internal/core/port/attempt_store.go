package port

import (
	"context"
	"time"
)

// FailedAttemptStore tracks consecutive failed credential verifications per
// username. Increment must be a single atomic storage operation (not
// read-then-write) so concurrent failures cannot undercount.
type FailedAttemptStore interface {
	// Increment records one failure and returns the updated count within the
	// configured window.
	Increment(ctx context.Context, username string) (int, error)
	Count(ctx context.Context, username string) (int, error)
	// Reset clears the counter after a successful verification.
	Reset(ctx context.Context, username string) error
}

// RateLimitStore defines the persistence operations required to enforce
// sliding-window request limits at the transport layer.
type RateLimitStore interface {
	TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error
	CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error
	OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error)
}
