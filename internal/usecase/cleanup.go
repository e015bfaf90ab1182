package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/osetrov/adminpanel-auth/internal/core/port"
	"github.com/osetrov/adminpanel-auth/internal/infra/config"
)

const disabledPollInterval = 15 * time.Second

// Reaper periodically sweeps stale rows. One instance removes expired
// refresh tokens, another resets elapsed lockout counters; both share the
// same loop so interval, backoff and shutdown behave identically.
type Reaper struct {
	name       string
	sweep      func(ctx context.Context, before time.Time) (int, error)
	enabled    func() bool
	interval   time.Duration
	retryDelay time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewTokenReaper builds the reaper that deletes expired refresh tokens.
func NewTokenReaper(tokens port.TokenRepository, cfg config.CleanupSettings, log *zap.Logger) *Reaper {
	return newReaper("token-reaper", tokens.DeleteExpiredRefreshTokens, func() bool { return cfg.TokensEnabled }, cfg, log)
}

// NewLockoutReaper builds the reaper that resets elapsed lockout windows.
func NewLockoutReaper(lockouts port.LockoutRepository, cfg config.CleanupSettings, log *zap.Logger) *Reaper {
	return newReaper("lockout-reaper", lockouts.ResetExpired, func() bool { return cfg.LockoutsEnabled }, cfg, log)
}

func newReaper(name string, sweep func(ctx context.Context, before time.Time) (int, error), enabled func() bool, cfg config.CleanupSettings, log *zap.Logger) *Reaper {
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 30 * time.Second
	}
	return &Reaper{
		name:       name,
		sweep:      sweep,
		enabled:    enabled,
		interval:   cfg.Interval,
		retryDelay: retryDelay,
		logger:     log.With(zap.String("worker", name)),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the reaper clock for deterministic tests.
func (r *Reaper) WithClock(clock func() time.Time) *Reaper {
	if clock != nil {
		r.now = clock
	}
	return r
}

// Run loops until the context is cancelled. When the worker is disabled it
// idles and re-checks the flag, so toggling configuration does not require
// a restart. A failed sweep backs off for the retry delay instead of the
// full interval.
func (r *Reaper) Run(ctx context.Context) error {
	r.logger.Info("cleanup worker started",
		zap.Duration("interval", r.interval),
		zap.Bool("enabled", r.enabled()))

	for {
		delay := r.interval
		if delay <= 0 {
			// A non-positive interval still must not spin.
			delay = time.Millisecond
		}

		if !r.enabled() {
			delay = disabledPollInterval
		} else if _, err := r.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				r.logger.Info("cleanup worker stopped")
				return ctx.Err()
			}
			r.logger.Error("sweep failed, backing off", zap.Error(err))
			delay = r.retryDelay
		}

		select {
		case <-ctx.Done():
			r.logger.Info("cleanup worker stopped")
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// RunOnce performs a single sweep and reports how many rows it touched.
func (r *Reaper) RunOnce(ctx context.Context) (int, error) {
	swept, err := r.sweep(ctx, r.now())
	if err != nil {
		return 0, err
	}
	if swept > 0 {
		r.logger.Info("sweep completed", zap.Int("rows", swept))
	}
	return swept, nil
}
