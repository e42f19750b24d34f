package repository

import (
	"context"

	"fmeaflow/internal/model"
)

// UserRepository defines data access for author/approver identities.
type UserRepository interface {
	Create(ctx context.Context, u *model.User) (*model.User, error)
	// FindByID returns a user by id; sql.ErrNoRows when absent.
	FindByID(ctx context.Context, id string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
}
