package repository

import (
	"context"

	"fmeaflow/internal/model"
)

// DocumentRepository defines data access for documents using SQL queries only.
type DocumentRepository interface {
	// Create inserts a new document record and returns it with its assigned
	// identity and timestamps.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns a document with its author and approver resolved.
	// Missing rows surface as sql.ErrNoRows.
	FindByID(ctx context.Context, id string) (*model.DocumentWithUsers, error)

	// Update persists the save-path mutation: content, version, mirrored
	// metadata and the modified timestamp. Status transitions go through
	// WorkflowRepository instead.
	Update(ctx context.Context, doc *model.Document) error

	// Rename changes only the display name.
	Rename(ctx context.Context, id, name string) error

	// List returns a paginated list of documents (without content payloads)
	// and the total row count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Document], error)
}
