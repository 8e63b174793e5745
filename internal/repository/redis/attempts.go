package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/auth-gateway/internal/core/port"
)

const defaultAttemptPrefix = "login_attempts"

// incrementScript bumps the counter and arms the window TTL only on the first
// failure, in one atomic evaluation. Concurrent failures therefore never
// undercount and never reset an armed window.
var incrementScript = red.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// AttemptStoreConfig tunes key naming and the lockout window.
type AttemptStoreConfig struct {
	KeyPrefix string
	Window    time.Duration
}

// FailedAttemptStore implements port.FailedAttemptStore with a per-username
// counter that expires with the lockout window.
type FailedAttemptStore struct {
	client *red.Client
	cfg    AttemptStoreConfig
}

// NewFailedAttemptStore constructs a Redis-backed failed attempt store.
func NewFailedAttemptStore(client *red.Client, cfg AttemptStoreConfig) *FailedAttemptStore {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultAttemptPrefix
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	return &FailedAttemptStore{client: client, cfg: cfg}
}

func (s *FailedAttemptStore) key(username string) string {
	return fmt.Sprintf("%s:%s", s.cfg.KeyPrefix, username)
}

// Increment records one failure and returns the count within the window.
func (s *FailedAttemptStore) Increment(ctx context.Context, username string) (int, error) {
	count, err := incrementScript.Run(ctx, s.client, []string{s.key(username)}, s.cfg.Window.Milliseconds()).Int()
	if err != nil {
		return 0, fmt.Errorf("redis increment attempts: %w", err)
	}
	return count, nil
}

// Count reads the current failure count without touching the window.
func (s *FailedAttemptStore) Count(ctx context.Context, username string) (int, error) {
	count, err := s.client.Get(ctx, s.key(username)).Int()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis read attempts: %w", err)
	}
	return count, nil
}

// Reset clears the counter after a successful verification.
func (s *FailedAttemptStore) Reset(ctx context.Context, username string) error {
	if err := s.client.Del(ctx, s.key(username)).Err(); err != nil {
		return fmt.Errorf("redis reset attempts: %w", err)
	}
	return nil
}

var _ port.FailedAttemptStore = (*FailedAttemptStore)(nil)
