package repository

import (
	"context"

	"fmeaflow/internal/model"
)

// TokenRepository reads approval tokens. Tokens are only ever written inside
// workflow transactions (issued at submit, consumed at decision time), so
// there is no standalone insert or update here.
type TokenRepository interface {
	// FindByID returns the token whatever its used flag; sql.ErrNoRows when
	// no token with that id exists.
	FindByID(ctx context.Context, id string) (*model.ApprovalToken, error)

	// ListByDocument returns all tokens issued for a document, newest first.
	ListByDocument(ctx context.Context, documentID string) ([]model.ApprovalToken, error)
}
