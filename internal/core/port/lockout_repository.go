package port

import (
	"context"
	"time"

	"github.com/osetrov/adminpanel-auth/internal/core/domain"
)

// LockoutRepository persists per-account failure counters.
//
// RecordFailure is a single atomic upsert: first failure creates the row,
// later failures increment it, and once the counter reaches maxAttempts the
// lockout window is re-extended from "at". Reset is a no-op when no row
// exists. ResetExpired clears counters of rows whose window has elapsed and
// returns how many rows it touched.
type LockoutRepository interface {
	Get(ctx context.Context, accountID string) (*domain.LockoutRecord, error)
	RecordFailure(ctx context.Context, accountID string, at time.Time, maxAttempts int, window time.Duration) (*domain.LockoutRecord, error)
	Reset(ctx context.Context, accountID string, at time.Time) error
	ResetExpired(ctx context.Context, before time.Time) (int, error)
}
