package port

import (
	"context"

	"github.com/osetrov/adminpanel-auth/internal/core/domain"
)

// AccountRepository provides read-only access to the user aggregate owned by
// the admin CRUD subsystem. Email lookups are case-insensitive.
type AccountRepository interface {
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByID(ctx context.Context, id string) (*domain.Account, error)
}
