package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/osetrov/adminpanel-auth/internal/core/port"
)

// RateLimitStore implements fixed-window counting on Redis. Each window gets
// its own key derived from the partition and the window index, so rollover
// needs no explicit reset: the previous window's key simply stops being
// consulted and expires on its own.
type RateLimitStore struct {
	client    *goredis.Client
	keyPrefix string
}

func NewRateLimitStore(client *goredis.Client, keyPrefix string) *RateLimitStore {
	if keyPrefix == "" {
		keyPrefix = "rate-limit"
	}
	return &RateLimitStore{client: client, keyPrefix: keyPrefix}
}

// Increment bumps the counter for the window containing "at" and returns the
// running count plus the time left until the window rolls over. The key TTL
// is set once, on first increment, to twice the window so late readers of a
// finished window still see its count.
func (s *RateLimitStore) Increment(ctx context.Context, partition string, window time.Duration, at time.Time) (int, time.Duration, error) {
	if window <= 0 {
		return 0, 0, fmt.Errorf("rate limit window must be positive, got %s", window)
	}

	windowIndex := at.UnixNano() / int64(window)
	key := fmt.Sprintf("%s:%s:%d", s.keyPrefix, partition, windowIndex)

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, 2*window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("increment rate limit counter: %w", err)
	}

	windowEnd := time.Unix(0, (windowIndex+1)*int64(window))
	expiresIn := windowEnd.Sub(at)
	if expiresIn < 0 {
		expiresIn = 0
	}
	return int(incr.Val()), expiresIn, nil
}

var _ port.RateLimitStore = (*RateLimitStore)(nil)
