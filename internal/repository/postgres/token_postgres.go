package postgres

import (
	"context"
	"database/sql"

	"fmeaflow/internal/model"
	"fmeaflow/internal/repository"
)

// TokenPostgres is a PostgreSQL implementation of repository.TokenRepository.
// Tokens are written only inside workflow transactions; this type is
// read-only by design.
type TokenPostgres struct {
	db *sql.DB
}

// NewTokenPostgres creates a new TokenPostgres repository.
func NewTokenPostgres(db *sql.DB) *TokenPostgres {
	return &TokenPostgres{db: db}
}

var _ repository.TokenRepository = (*TokenPostgres)(nil)

// FindByID fetches a token by its identity, used or not.
func (r *TokenPostgres) FindByID(ctx context.Context, id string) (*model.ApprovalToken, error) {
	const q = `
		SELECT id, document_id, action, used, expires_at
		FROM approval_tokens
		WHERE id = $1
	`
	var t model.ApprovalToken
	if err := r.db.QueryRowContext(ctx, q, id).Scan(
		&t.ID,
		&t.DocumentID,
		&t.Action,
		&t.Used,
		&t.ExpiresAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListByDocument returns all tokens issued for a document, newest first.
func (r *TokenPostgres) ListByDocument(ctx context.Context, documentID string) ([]model.ApprovalToken, error) {
	const q = `
		SELECT id, document_id, action, used, expires_at
		FROM approval_tokens
		WHERE document_id = $1
		ORDER BY expires_at DESC
	`
	rows, err := r.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := make([]model.ApprovalToken, 0)
	for rows.Next() {
		var t model.ApprovalToken
		if err := rows.Scan(&t.ID, &t.DocumentID, &t.Action, &t.Used, &t.ExpiresAt); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
