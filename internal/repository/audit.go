package repository

import (
	"context"
	"time"

	"fmeaflow/internal/model"
)

// AuditFilter narrows the system-wide audit query. Zero values mean "no
// constraint".
type AuditFilter struct {
	From       *time.Time
	To         *time.Time
	UserID     string
	DocumentID string
}

// AuditRepository is the append-only change history. There is deliberately
// no update or delete operation.
type AuditRepository interface {
	// Append inserts one change record and returns it with its assigned id.
	Append(ctx context.Context, entry *model.AuditLog) (*model.AuditLog, error)

	// ListByDocument returns all entries for a document, newest first, with
	// the acting user's name resolved.
	ListByDocument(ctx context.Context, documentID string) ([]model.AuditLog, error)

	// List returns entries matching the filter, newest first. Reporting use
	// only.
	List(ctx context.Context, f AuditFilter) ([]model.AuditLog, error)
}
