package usecase

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/osetrov/adminpanel-auth/internal/core/domain"
	"github.com/osetrov/adminpanel-auth/internal/core/port"
	"github.com/osetrov/adminpanel-auth/internal/infra/config"
	"github.com/osetrov/adminpanel-auth/internal/infra/security"
	"github.com/osetrov/adminpanel-auth/internal/repository"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

type stubTokenRepo struct {
	mu     sync.Mutex
	byHash map[string]*domain.RefreshToken

	createErr error
}

func newStubTokenRepo() *stubTokenRepo {
	return &stubTokenRepo{byHash: map[string]*domain.RefreshToken{}}
}

func (r *stubTokenRepo) CreateRefreshToken(_ context.Context, token domain.RefreshToken) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := token
	r.byHash[token.TokenHash] = &copied
	return nil
}

func (r *stubTokenRepo) GetRefreshTokenByHash(_ context.Context, hash string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.byHash[hash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *token
	return &copied, nil
}

func (r *stubTokenRepo) MarkRefreshTokenReplaced(_ context.Context, id string, successorHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range r.byHash {
		if token.ID == id && token.RevokedAt == nil && token.ReplacedByHash == nil {
			token.ReplacedByHash = &successorHash
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *stubTokenRepo) RevokeRefreshToken(_ context.Context, id string, at time.Time, ip string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range r.byHash {
		if token.ID == id && token.RevokedAt == nil {
			revokedAt := at
			token.RevokedAt = &revokedAt
			if ip != "" {
				revokedBy := ip
				token.RevokedByIP = &revokedBy
			}
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *stubTokenRepo) DeleteExpiredRefreshTokens(_ context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	deleted := 0
	for hash, token := range r.byHash {
		if !token.ExpiresAt.After(before) {
			delete(r.byHash, hash)
			deleted++
		}
	}
	return deleted, nil
}

func (r *stubTokenRepo) InTx(_ context.Context, fn func(port.TokenRepository) error) error {
	return fn(r)
}

type stubLockoutRepo struct {
	mu      sync.Mutex
	records map[string]*domain.LockoutRecord

	failureErr error
	resetCalls int
}

func newStubLockoutRepo() *stubLockoutRepo {
	return &stubLockoutRepo{records: map[string]*domain.LockoutRecord{}}
}

func (r *stubLockoutRepo) Get(_ context.Context, accountID string) (*domain.LockoutRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[accountID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (r *stubLockoutRepo) RecordFailure(_ context.Context, accountID string, at time.Time, maxAttempts int, window time.Duration) (*domain.LockoutRecord, error) {
	if r.failureErr != nil {
		return nil, r.failureErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[accountID]
	if !ok {
		record = &domain.LockoutRecord{
			AccountID:  accountID,
			LockoutEnd: at,
			CreatedAt:  at,
		}
		if maxAttempts <= 1 {
			record.LockoutEnd = at.Add(window)
		}
		record.FailedAttempts = 1
		record.UpdatedAt = at
		r.records[accountID] = record
	} else {
		record.RegisterFailure(at, maxAttempts, window)
	}
	copied := *record
	return &copied, nil
}

func (r *stubLockoutRepo) Reset(_ context.Context, accountID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetCalls++
	if record, ok := r.records[accountID]; ok {
		record.Reset(at)
	}
	return nil
}

func (r *stubLockoutRepo) ResetExpired(_ context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cleaned := 0
	for _, record := range r.records {
		if record.FailedAttempts > 0 && !record.LockoutEnd.After(before) {
			record.Reset(before)
			cleaned++
		}
	}
	return cleaned, nil
}

type stubAccountRepo struct {
	accounts map[string]*domain.Account // keyed by lowercase email
	byID     map[string]*domain.Account
}

func newStubAccountRepo(accounts ...domain.Account) *stubAccountRepo {
	repo := &stubAccountRepo{
		accounts: map[string]*domain.Account{},
		byID:     map[string]*domain.Account{},
	}
	for i := range accounts {
		account := accounts[i]
		repo.accounts[strings.ToLower(account.Email.String())] = &account
		repo.byID[account.ID] = &account
	}
	return repo
}

func (r *stubAccountRepo) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	account, ok := r.accounts[strings.ToLower(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (r *stubAccountRepo) GetByID(_ context.Context, id string) (*domain.Account, error) {
	account, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	succeeded []domain.LoginSucceededEvent
	failed    []domain.LoginFailedEvent
	locked    []domain.AccountLockedEvent
	rotated   []domain.TokenRotatedEvent
}

func (p *recordingPublisher) PublishLoginSucceeded(_ context.Context, event domain.LoginSucceededEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.succeeded = append(p.succeeded, event)
	return nil
}

func (p *recordingPublisher) PublishLoginFailed(_ context.Context, event domain.LoginFailedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed = append(p.failed, event)
	return nil
}

func (p *recordingPublisher) PublishAccountLocked(_ context.Context, event domain.AccountLockedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locked = append(p.locked, event)
	return nil
}

func (p *recordingPublisher) PublishTokenRotated(_ context.Context, event domain.TokenRotatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rotated = append(p.rotated, event)
	return nil
}

func newTestSigner(t *testing.T, clock func() time.Time) *security.JWTSigner {
	t.Helper()
	signer, err := security.NewJWTSigner(config.JWTSettings{
		SigningKey:     testSigningKey,
		Issuer:         "adminpanel-auth-test",
		Audience:       "adminpanel",
		AccessTokenTTL: 15 * time.Minute,
	})
	require.NoError(t, err)
	if clock != nil {
		signer.WithClock(clock)
	}
	return signer
}

func newTestAccount(t *testing.T, password string) domain.Account {
	t.Helper()
	hash, err := security.HashPassword(password)
	require.NoError(t, err)
	account, err := domain.NewAccount("acc-1", "admin@example.com", "admin", hash, []string{"admin"})
	require.NoError(t, err)
	return account
}

func nopLogger() *zap.Logger { return zap.NewNop() }
