package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories bundles the PostgreSQL-backed repositories sharing one pool.
type Repositories struct {
	Tokens   *TokenRepository
	Lockouts *LockoutRepository
	Accounts *AccountRepository
}

func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Tokens:   NewTokenRepository(pool),
		Lockouts: NewLockoutRepository(pool),
		Accounts: NewAccountRepository(pool),
	}
}
