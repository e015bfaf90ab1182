package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osetrov/adminpanel-auth/internal/infra/config"
)

func newTestLockoutService(repo *stubLockoutRepo, cfg config.LockoutSettings, clock func() time.Time) (*LockoutService, *recordingPublisher) {
	publisher := &recordingPublisher{}
	service := NewLockoutService(repo, publisher, cfg, nopLogger())
	if clock != nil {
		service.WithClock(clock)
	}
	return service, publisher
}

func TestLockoutThreshold(t *testing.T) {
	repo := newStubLockoutRepo()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg := config.LockoutSettings{Enabled: true, MaxFailedAttempts: 5, Duration: 15 * time.Minute}
	service, publisher := newTestLockoutService(repo, cfg, func() time.Time { return now })

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := service.RecordFailure(ctx, "acc-1")
		require.NoError(t, err)
		assert.NoError(t, service.Check(ctx, "acc-1"), "attempt %d must not lock", i+1)
	}
	assert.Empty(t, publisher.locked)

	record, err := service.RecordFailure(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, 5, record.FailedAttempts)
	assert.ErrorIs(t, service.Check(ctx, "acc-1"), ErrAccountLocked)

	require.Len(t, publisher.locked, 1)
	assert.Equal(t, "acc-1", publisher.locked[0].AccountID)
	assert.Equal(t, now.Add(15*time.Minute), publisher.locked[0].LockedUntil)
}

func TestLockoutEventEmittedOnlyOnCrossing(t *testing.T) {
	repo := newStubLockoutRepo()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg := config.LockoutSettings{Enabled: true, MaxFailedAttempts: 2, Duration: time.Minute}
	service, publisher := newTestLockoutService(repo, cfg, func() time.Time { return now })

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := service.RecordFailure(ctx, "acc-1")
		require.NoError(t, err)
	}
	assert.Len(t, publisher.locked, 1)
}

func TestLockoutWindowExpires(t *testing.T) {
	repo := newStubLockoutRepo()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	cfg := config.LockoutSettings{Enabled: true, MaxFailedAttempts: 2, Duration: 15 * time.Minute}
	service, _ := newTestLockoutService(repo, cfg, clock)

	ctx := context.Background()
	_, err := service.RecordFailure(ctx, "acc-1")
	require.NoError(t, err)
	_, err = service.RecordFailure(ctx, "acc-1")
	require.NoError(t, err)
	assert.ErrorIs(t, service.Check(ctx, "acc-1"), ErrAccountLocked)

	// Once the window elapses the account is usable again without a reaper
	// pass, even though the stale counter is still in place.
	now = now.Add(15 * time.Minute)
	assert.NoError(t, service.Check(ctx, "acc-1"))
}

func TestStaleCounterKeepsIncrementing(t *testing.T) {
	repo := newStubLockoutRepo()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	cfg := config.LockoutSettings{Enabled: true, MaxFailedAttempts: 3, Duration: 15 * time.Minute}
	service, _ := newTestLockoutService(repo, cfg, clock)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := service.RecordFailure(ctx, "acc-1")
		require.NoError(t, err)
	}

	// Window elapses but the reaper has not swept yet. The next failure
	// lands on the stale counter and re-locks immediately.
	now = now.Add(16 * time.Minute)
	record, err := service.RecordFailure(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, 4, record.FailedAttempts)
	assert.ErrorIs(t, service.Check(ctx, "acc-1"), ErrAccountLocked)
}

func TestRecordSuccessResetsCounter(t *testing.T) {
	repo := newStubLockoutRepo()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg := config.LockoutSettings{Enabled: true, MaxFailedAttempts: 5, Duration: 15 * time.Minute}
	service, _ := newTestLockoutService(repo, cfg, func() time.Time { return now })

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := service.RecordFailure(ctx, "acc-1")
		require.NoError(t, err)
	}
	require.NoError(t, service.RecordSuccess(ctx, "acc-1"))

	// The next failure starts a fresh count.
	record, err := service.RecordFailure(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, record.FailedAttempts)
}

func TestClearLiftsActiveLock(t *testing.T) {
	repo := newStubLockoutRepo()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg := config.LockoutSettings{Enabled: true, MaxFailedAttempts: 1, Duration: time.Hour}
	service, _ := newTestLockoutService(repo, cfg, func() time.Time { return now })

	ctx := context.Background()
	_, err := service.RecordFailure(ctx, "acc-1")
	require.NoError(t, err)
	require.ErrorIs(t, service.Check(ctx, "acc-1"), ErrAccountLocked)

	require.NoError(t, service.Clear(ctx, "acc-1"))
	assert.NoError(t, service.Check(ctx, "acc-1"))
}

func TestLockoutDisabledIsNoop(t *testing.T) {
	repo := newStubLockoutRepo()
	cfg := config.LockoutSettings{Enabled: false, MaxFailedAttempts: 1, Duration: time.Hour}
	service, publisher := newTestLockoutService(repo, cfg, nil)

	ctx := context.Background()
	record, err := service.RecordFailure(ctx, "acc-1")
	require.NoError(t, err)
	assert.Nil(t, record)
	assert.NoError(t, service.Check(ctx, "acc-1"))
	assert.Empty(t, repo.records)
	assert.Empty(t, publisher.locked)
}

func TestClearDisabledIsNoop(t *testing.T) {
	repo := newStubLockoutRepo()
	cfg := config.LockoutSettings{Enabled: false, MaxFailedAttempts: 5, Duration: time.Hour}
	service, _ := newTestLockoutService(repo, cfg, nil)

	require.NoError(t, service.Clear(context.Background(), "acc-1"))
	assert.Zero(t, repo.resetCalls)
}

func TestSingleAttemptLocksImmediately(t *testing.T) {
	repo := newStubLockoutRepo()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg := config.LockoutSettings{Enabled: true, MaxFailedAttempts: 1, Duration: 10 * time.Minute}
	service, _ := newTestLockoutService(repo, cfg, func() time.Time { return now })

	ctx := context.Background()
	record, err := service.RecordFailure(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, record.FailedAttempts)
	assert.ErrorIs(t, service.Check(ctx, "acc-1"), ErrAccountLocked)
}
