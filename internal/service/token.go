package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fmeaflow/internal/model"
	"fmeaflow/internal/repository"
)

// TokenService issues and resolves approval tokens. Issued pairs are not
// persisted here; they ride inside the submit transaction so that a rolled
// back submit leaves no orphan tokens. Consumption likewise happens inside
// the decision transaction, keyed on the used flag.
type TokenService struct {
	tokens repository.TokenRepository
	now    func() time.Time
}

func NewTokenService(tokens repository.TokenRepository) *TokenService {
	return &TokenService{tokens: tokens, now: time.Now}
}

// IssuePair mints the Approve/Reject token pair for one submission. Both
// tokens share an expiry seven days out and carry fresh random UUIDs.
func (s *TokenService) IssuePair(documentID string) [2]model.ApprovalToken {
	expires := s.now().Add(model.TokenValidity)
	return [2]model.ApprovalToken{
		{ID: uuid.NewString(), DocumentID: documentID, Action: model.ActionApprove, ExpiresAt: expires},
		{ID: uuid.NewString(), DocumentID: documentID, Action: model.ActionReject, ExpiresAt: expires},
	}
}

// Resolve validates a raw token string from the reply channel and loads the
// token it names. Returns ErrInvalidInput for anything that is not a
// canonical UUID, ErrNotFound for unknown ids, repository.ErrTokenSpent for
// already-used tokens and ErrTokenExpired for stale ones.
func (s *TokenService) Resolve(ctx context.Context, raw string) (*model.ApprovalToken, error) {
	if raw == "" {
		return nil, ErrIDRequired
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: not a token: %q", ErrInvalidInput, raw)
	}

	tok, err := s.tokens.FindByID(ctx, id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find token: %w", err)
	}
	if tok.Used {
		return nil, repository.ErrTokenSpent
	}
	if tok.Expired(s.now()) {
		return nil, ErrTokenExpired
	}
	return tok, nil
}

// ListByDocument exposes a document's issued tokens for the control surface.
func (s *TokenService) ListByDocument(ctx context.Context, documentID string) ([]model.ApprovalToken, error) {
	if documentID == "" {
		return nil, ErrIDRequired
	}
	return s.tokens.ListByDocument(ctx, documentID)
}
