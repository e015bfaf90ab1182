package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/osetrov/adminpanel-auth/internal/core/domain"
	"github.com/osetrov/adminpanel-auth/internal/core/port"
	"github.com/osetrov/adminpanel-auth/internal/repository"
)

const lockoutsTable = "lockouts"

// LockoutRepository is the PostgreSQL implementation of port.LockoutRepository.
type LockoutRepository struct {
	db pgExecutor
}

func NewLockoutRepository(db pgExecutor) *LockoutRepository {
	return &LockoutRepository{db: db}
}

// recordFailureQuery is a single upsert so that concurrent failures for the
// same account serialize on the row instead of racing a read-modify-write.
// The freshly inserted row carries lockout_end = "at" (already elapsed)
// unless a single attempt is enough to lock; the update branch extends the
// window from "at" whenever the incremented counter reaches the threshold.
const recordFailureQuery = `
INSERT INTO lockouts (account_id, failed_attempts, lockout_end, created_at, updated_at)
VALUES ($1, 1, CASE WHEN $3 <= 1 THEN $2 + $4 ELSE $2 END, $2, $2)
ON CONFLICT (account_id) DO UPDATE SET
    failed_attempts = lockouts.failed_attempts + 1,
    lockout_end = CASE
        WHEN lockouts.failed_attempts + 1 >= $3 THEN $2 + $4
        ELSE lockouts.lockout_end
    END,
    updated_at = $2
RETURNING account_id, failed_attempts, lockout_end, created_at, updated_at`

// RecordFailure registers one failed attempt and returns the updated record.
func (r *LockoutRepository) RecordFailure(ctx context.Context, accountID string, at time.Time, maxAttempts int, window time.Duration) (*domain.LockoutRecord, error) {
	row := r.db.QueryRow(ctx, recordFailureQuery, accountID, at, maxAttempts, window)

	record, err := scanLockoutRecord(row)
	if err != nil {
		return nil, fmt.Errorf("record lockout failure: %w", err)
	}
	return record, nil
}

func (r *LockoutRepository) Get(ctx context.Context, accountID string) (*domain.LockoutRecord, error) {
	query, args, err := psql.
		Select("account_id", "failed_attempts", "lockout_end", "created_at", "updated_at").
		From(lockoutsTable).
		Where(sq.Eq{"account_id": accountID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select lockout query: %w", err)
	}

	row := r.db.QueryRow(ctx, query, args...)
	record, err := scanLockoutRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select lockout record: %w", err)
	}
	return record, nil
}

// Reset zeroes the counter after a successful authentication. Resetting an
// account with no record is not an error.
func (r *LockoutRepository) Reset(ctx context.Context, accountID string, at time.Time) error {
	query, args, err := psql.
		Update(lockoutsTable).
		Set("failed_attempts", 0).
		Set("lockout_end", at.Add(-time.Second)).
		Set("updated_at", at).
		Where(sq.Eq{"account_id": accountID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build reset lockout query: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("reset lockout record: %w", err)
	}
	return nil
}

// ResetExpired clears counters whose window elapsed before the cutoff and
// reports how many rows it cleaned.
func (r *LockoutRepository) ResetExpired(ctx context.Context, before time.Time) (int, error) {
	query, args, err := psql.
		Update(lockoutsTable).
		Set("failed_attempts", 0).
		Set("updated_at", before).
		Where(sq.LtOrEq{"lockout_end": before}).
		Where(sq.Gt{"failed_attempts": 0}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build reset expired lockouts query: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reset expired lockouts: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanLockoutRecord(row pgx.Row) (*domain.LockoutRecord, error) {
	var record domain.LockoutRecord
	err := row.Scan(
		&record.AccountID,
		&record.FailedAttempts,
		&record.LockoutEnd,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

var _ port.LockoutRepository = (*LockoutRepository)(nil)
