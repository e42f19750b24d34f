package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fmeaflow/internal/model"
	"fmeaflow/internal/repository"
)

// UserService manages author/approver identities. Deliberately minimal;
// users are created once and then only referenced.
type UserService struct {
	users repository.UserRepository
}

func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

func (s *UserService) Create(ctx context.Context, u *model.User) (*model.User, error) {
	if u.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if !model.ValidEmail(u.Email) {
		return nil, fmt.Errorf("%w: email", ErrInvalidInput)
	}
	created, err := s.users.Create(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (s *UserService) FindByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}
