package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/osetrov/adminpanel-auth/internal/core/port"
	"github.com/osetrov/adminpanel-auth/internal/infra/config"
)

const (
	rateLimitProblemType  = "https://adminpanel.example.com/errors/rate-limit-exceeded"
	rateLimitProblemTitle = "Rate Limit Exceeded"

	globalPartition  = "global"
	unknownPartition = "ip:unknown"
)

// ProblemDetails is an RFC 9457 compatible error payload for rate limits.
type ProblemDetails struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail"`
	Instance   string `json:"instance"`
	RetryAfter int    `json:"retry_after"`
	TraceID    string `json:"trace_id,omitempty"`
}

// RateLimiter enforces a fixed-window limit per partition. Requests that
// overflow the window may wait in a bounded FIFO queue for the next window
// instead of being rejected outright; once the queue for a partition is full
// further requests get 429 immediately.
type RateLimiter struct {
	store  port.RateLimitStore
	cfg    config.RateLimitSettings
	logger *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	queues map[string]chan struct{}
}

// NewRateLimiter builds the admission control middleware helper.
func NewRateLimiter(store port.RateLimitStore, cfg config.RateLimitSettings, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PermitLimit <= 0 {
		cfg.PermitLimit = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = 12 * time.Second
	}
	if cfg.QueueDepth < 0 {
		cfg.QueueDepth = 0
	}

	return &RateLimiter{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		queues: make(map[string]chan struct{}),
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// Partition resolves the admission partition for a request. An API key wins
// over the client IP; with both strategies disabled every request shares the
// global partition.
func (rl *RateLimiter) Partition(c *gin.Context) string {
	if rl.cfg.ByAPIKey {
		if key := strings.TrimSpace(c.GetHeader(rl.cfg.APIKeyHeader)); key != "" {
			return "key:" + key
		}
	}
	if rl.cfg.ByClientIP {
		if ip := resolveClientIP(c); ip != "" {
			return "ip:" + ip
		}
		return unknownPartition
	}
	return globalPartition
}

// Handler returns the Gin middleware enforcing the limit.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.cfg.Enabled || rl.store == nil {
			c.Next()
			return
		}

		partition := rl.Partition(c)
		now := rl.now()

		count, expiresIn, err := rl.store.Increment(c.Request.Context(), partition, rl.cfg.Window, now)
		if err != nil {
			// Admission control must not take the login path down with it.
			rl.logger.Warn("rate limit check failed, letting request through",
				zap.String("partition", partition),
				zap.Error(err))
			c.Next()
			return
		}

		if count <= rl.cfg.PermitLimit {
			c.Next()
			return
		}

		if !rl.waitForNextWindow(c, partition, expiresIn) {
			return
		}

		// The window rolled over while we queued; one re-check decides.
		count, expiresIn, err = rl.store.Increment(c.Request.Context(), partition, rl.cfg.Window, rl.now())
		if err != nil {
			rl.logger.Warn("rate limit re-check failed, letting request through",
				zap.String("partition", partition),
				zap.Error(err))
			c.Next()
			return
		}
		if count <= rl.cfg.PermitLimit {
			c.Next()
			return
		}

		rl.reject(c, partition, expiresIn)
	}
}

// waitForNextWindow parks the request in the partition's FIFO queue until
// the current window ends. It reports false when the request was rejected,
// either because the queue is full or the client went away.
func (rl *RateLimiter) waitForNextWindow(c *gin.Context, partition string, expiresIn time.Duration) bool {
	if rl.cfg.QueueDepth == 0 {
		rl.reject(c, partition, expiresIn)
		return false
	}

	queue := rl.queue(partition)
	select {
	case queue <- struct{}{}:
	default:
		rl.reject(c, partition, expiresIn)
		return false
	}
	defer func() { <-queue }()

	select {
	case <-time.After(expiresIn):
		return true
	case <-c.Request.Context().Done():
		c.AbortWithStatus(http.StatusRequestTimeout)
		return false
	}
}

func (rl *RateLimiter) queue(partition string) chan struct{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	queue, ok := rl.queues[partition]
	if !ok {
		queue = make(chan struct{}, rl.cfg.QueueDepth)
		rl.queues[partition] = queue
	}
	return queue
}

func (rl *RateLimiter) reject(c *gin.Context, partition string, retryAfter time.Duration) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}

	rl.logger.Info("request rejected by rate limiter",
		zap.String("partition", partition),
		zap.Int("retry_after", seconds))

	c.Header("Retry-After", strconv.Itoa(seconds))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, ProblemDetails{
		Type:       rateLimitProblemType,
		Title:      rateLimitProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     "Too many requests, slow down.",
		Instance:   c.Request.URL.Path,
		RetryAfter: seconds,
		TraceID:    GetTraceID(c),
	})
}

// resolveClientIP prefers proxy-set headers over the socket peer address.
func resolveClientIP(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		for _, entry := range strings.Split(fwd, ",") {
			if trimmed := strings.TrimSpace(entry); trimmed != "" {
				return trimmed
			}
		}
	}
	if real := strings.TrimSpace(c.GetHeader("X-Real-IP")); real != "" {
		return real
	}
	if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(c.Request.RemoteAddr)
}
