package postgres

import (
	"context"
	"database/sql"

	"fmeaflow/internal/model"
	"fmeaflow/internal/repository"
)

// UserPostgres is a PostgreSQL implementation of repository.UserRepository.
type UserPostgres struct {
	db *sql.DB
}

// NewUserPostgres creates a new UserPostgres repository.
func NewUserPostgres(db *sql.DB) *UserPostgres {
	return &UserPostgres{db: db}
}

var _ repository.UserRepository = (*UserPostgres)(nil)

// Create inserts a user row and returns it with its assigned identity.
func (r *UserPostgres) Create(ctx context.Context, u *model.User) (*model.User, error) {
	const q = `INSERT INTO users (name, email) VALUES ($1, $2) RETURNING id`
	out := *u
	if err := r.db.QueryRowContext(ctx, q, u.Name, u.Email).Scan(&out.ID); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindByID fetches a single user by id.
func (r *UserPostgres) FindByID(ctx context.Context, id string) (*model.User, error) {
	const q = `SELECT id, name, email FROM users WHERE id = $1`
	var u model.User
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&u.ID, &u.Name, &u.Email); err != nil {
		return nil, err
	}
	return &u, nil
}

// List returns all users ordered by name. The user base of a single
// engineering team is small; no pagination needed here.
func (r *UserPostgres) List(ctx context.Context) ([]model.User, error) {
	const q = `SELECT id, name, email FROM users ORDER BY name`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
