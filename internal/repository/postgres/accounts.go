package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/osetrov/adminpanel-auth/internal/core/domain"
	"github.com/osetrov/adminpanel-auth/internal/core/port"
	"github.com/osetrov/adminpanel-auth/internal/repository"
)

// AccountRepository reads the user aggregate owned by the admin CRUD
// subsystem. The roles array is aggregated in SQL so a single round trip
// yields the complete account view.
type AccountRepository struct {
	db pgExecutor
}

func NewAccountRepository(db pgExecutor) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountByEmailQuery = `
SELECT u.id, u.email, u.username, u.password_hash,
       COALESCE(array_agg(r.name) FILTER (WHERE r.name IS NOT NULL), '{}') AS roles
FROM users u
LEFT JOIN user_roles ur ON ur.user_id = u.id
LEFT JOIN roles r ON r.id = ur.role_id
WHERE lower(u.email) = lower($1) AND u.deleted_at IS NULL
GROUP BY u.id`

const accountByIDQuery = `
SELECT u.id, u.email, u.username, u.password_hash,
       COALESCE(array_agg(r.name) FILTER (WHERE r.name IS NOT NULL), '{}') AS roles
FROM users u
LEFT JOIN user_roles ur ON ur.user_id = u.id
LEFT JOIN roles r ON r.id = ur.role_id
WHERE u.id = $1 AND u.deleted_at IS NULL
GROUP BY u.id`

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.getOne(ctx, accountByEmailQuery, email)
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.getOne(ctx, accountByIDQuery, id)
}

func (r *AccountRepository) getOne(ctx context.Context, query string, arg any) (*domain.Account, error) {
	var (
		id           string
		email        string
		username     string
		passwordHash string
		roles        []string
	)

	err := r.db.QueryRow(ctx, query, arg).Scan(&id, &email, &username, &passwordHash, &roles)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select account: %w", err)
	}

	account, err := domain.NewAccount(id, email, username, passwordHash, roles)
	if err != nil {
		return nil, fmt.Errorf("assemble account: %w", err)
	}
	return &account, nil
}

var _ port.AccountRepository = (*AccountRepository)(nil)
