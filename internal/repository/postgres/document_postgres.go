package postgres

import (
	"context"
	"database/sql"

	"fmeaflow/internal/model"
	"fmeaflow/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

// Create inserts a new document row and returns it with its assigned identity.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	const q = `
		INSERT INTO documents
			(name, author_id, status, version, content, storage_path,
			 fmea_id, product_part, project_name, team, responsible_party, approved_by,
			 created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`
	out := *doc
	row := r.db.QueryRowContext(ctx, q,
		doc.Name,
		doc.AuthorID,
		doc.Status,
		doc.Version,
		doc.Content,
		doc.StoragePath,
		doc.FmeaID,
		doc.ProductPart,
		doc.ProjectName,
		doc.Team,
		doc.ResponsibleParty,
		doc.ApprovedBy,
		doc.CreatedAt,
		doc.ModifiedAt,
	)
	if err := row.Scan(&out.ID); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindByID fetches a single document with its author and approver resolved.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.DocumentWithUsers, error) {
	const q = `
		SELECT d.id, d.name, d.author_id, COALESCE(d.approver_id::text, ''),
		       d.status, d.version, d.content, COALESCE(d.storage_path, ''),
		       COALESCE(d.fmea_id, ''), COALESCE(d.product_part, ''),
		       COALESCE(d.project_name, ''), COALESCE(d.team, ''),
		       COALESCE(d.responsible_party, ''), COALESCE(d.approved_by, ''),
		       d.created_at, d.modified_at, d.completed_at,
		       a.name, a.email,
		       COALESCE(p.name, ''), COALESCE(p.email, '')
		FROM documents d
		JOIN users a ON a.id = d.author_id
		LEFT JOIN users p ON p.id = d.approver_id
		WHERE d.id = $1
	`
	row := r.db.QueryRowContext(ctx, q, id)

	var (
		d             model.DocumentWithUsers
		completedAt   sql.NullTime
		authorName    string
		authorEmail   string
		approverName  string
		approverEmail string
	)
	if err := row.Scan(
		&d.ID,
		&d.Name,
		&d.AuthorID,
		&d.ApproverID,
		&d.Status,
		&d.Version,
		&d.Content,
		&d.StoragePath,
		&d.FmeaID,
		&d.ProductPart,
		&d.ProjectName,
		&d.Team,
		&d.ResponsibleParty,
		&d.ApprovedBy,
		&d.CreatedAt,
		&d.ModifiedAt,
		&completedAt,
		&authorName,
		&authorEmail,
		&approverName,
		&approverEmail,
	); err != nil {
		return nil, err
	}

	if completedAt.Valid {
		t := completedAt.Time
		d.CompletedAt = &t
	}
	d.Author = &model.User{ID: d.AuthorID, Name: authorName, Email: authorEmail}
	if d.ApproverID != "" {
		d.Approver = &model.User{ID: d.ApproverID, Name: approverName, Email: approverEmail}
	}
	return &d, nil
}

// Update persists the save-path mutation for an existing document.
func (r *DocumentPostgres) Update(ctx context.Context, doc *model.Document) error {
	const q = `
		UPDATE documents
		SET name = $1, version = $2, content = $3, storage_path = $4,
		    fmea_id = $5, product_part = $6, project_name = $7, team = $8,
		    responsible_party = $9, approved_by = $10, modified_at = $11
		WHERE id = $12
	`
	res, err := r.db.ExecContext(ctx, q,
		doc.Name,
		doc.Version,
		doc.Content,
		doc.StoragePath,
		doc.FmeaID,
		doc.ProductPart,
		doc.ProjectName,
		doc.Team,
		doc.ResponsibleParty,
		doc.ApprovedBy,
		doc.ModifiedAt,
		doc.ID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Rename changes only the display name.
func (r *DocumentPostgres) Rename(ctx context.Context, id, name string) error {
	const q = `UPDATE documents SET name = $1, modified_at = now() WHERE id = $2`
	res, err := r.db.ExecContext(ctx, q, name, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns documents (without content payloads) using LIMIT/OFFSET
// pagination and a total count.
func (r *DocumentPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	const qCount = `SELECT COUNT(*) FROM documents`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT id, name, author_id, COALESCE(approver_id::text, ''), status, version,
		       COALESCE(fmea_id, ''), COALESCE(project_name, ''), COALESCE(approved_by, ''),
		       created_at, modified_at, completed_at
		FROM documents
		ORDER BY modified_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		var (
			d           model.Document
			completedAt sql.NullTime
		)
		if err := rows.Scan(
			&d.ID,
			&d.Name,
			&d.AuthorID,
			&d.ApproverID,
			&d.Status,
			&d.Version,
			&d.FmeaID,
			&d.ProjectName,
			&d.ApprovedBy,
			&d.CreatedAt,
			&d.ModifiedAt,
			&completedAt,
		); err != nil {
			return nil, err
		}
		if completedAt.Valid {
			t := completedAt.Time
			d.CompletedAt = &t
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Document]{
		Items: items,
		Total: total,
	}, nil
}
