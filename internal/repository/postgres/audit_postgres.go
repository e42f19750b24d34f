package postgres

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"fmeaflow/internal/model"
	"fmeaflow/internal/repository"
)

// AuditPostgres is a PostgreSQL implementation of repository.AuditRepository.
// Append-only: there is no UPDATE or DELETE statement in this file.
type AuditPostgres struct {
	db *sql.DB
}

// NewAuditPostgres creates a new AuditPostgres repository.
func NewAuditPostgres(db *sql.DB) *AuditPostgres {
	return &AuditPostgres{db: db}
}

var _ repository.AuditRepository = (*AuditPostgres)(nil)

// Append inserts one change record and returns it with its assigned id.
func (r *AuditPostgres) Append(ctx context.Context, entry *model.AuditLog) (*model.AuditLog, error) {
	const q = `
		INSERT INTO audit_logs (document_id, user_id, ts, field, old_value, new_value, revision, rationale)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	out := *entry
	row := r.db.QueryRowContext(ctx, q,
		entry.DocumentID,
		entry.UserID,
		entry.Timestamp,
		entry.Field,
		entry.OldValue,
		entry.NewValue,
		entry.Revision,
		entry.Rationale,
	)
	if err := row.Scan(&out.ID); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListByDocument returns all entries for a document, newest first.
func (r *AuditPostgres) ListByDocument(ctx context.Context, documentID string) ([]model.AuditLog, error) {
	const q = `
		SELECT l.id, l.document_id, l.user_id, u.name, l.ts,
		       l.field, l.old_value, l.new_value, l.revision, l.rationale
		FROM audit_logs l
		JOIN users u ON u.id = l.user_id
		WHERE l.document_id = $1
		ORDER BY l.ts DESC, l.id DESC
	`
	rows, err := r.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAuditRows(rows)
}

// List returns entries matching the filter, newest first.
func (r *AuditPostgres) List(ctx context.Context, f repository.AuditFilter) ([]model.AuditLog, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`
		SELECT l.id, l.document_id, l.user_id, u.name, l.ts,
		       l.field, l.old_value, l.new_value, l.revision, l.rationale
		FROM audit_logs l
		JOIN users u ON u.id = l.user_id
		WHERE 1=1`)

	if f.DocumentID != "" {
		args = append(args, f.DocumentID)
		sb.WriteString(" AND l.document_id = $" + strconv.Itoa(len(args)))
	}
	if f.UserID != "" {
		args = append(args, f.UserID)
		sb.WriteString(" AND l.user_id = $" + strconv.Itoa(len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		sb.WriteString(" AND l.ts >= $" + strconv.Itoa(len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		sb.WriteString(" AND l.ts <= $" + strconv.Itoa(len(args)))
	}
	sb.WriteString(" ORDER BY l.ts DESC, l.id DESC")

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAuditRows(rows)
}

func scanAuditRows(rows *sql.Rows) ([]model.AuditLog, error) {
	entries := make([]model.AuditLog, 0)
	for rows.Next() {
		var e model.AuditLog
		if err := rows.Scan(
			&e.ID,
			&e.DocumentID,
			&e.UserID,
			&e.UserName,
			&e.Timestamp,
			&e.Field,
			&e.OldValue,
			&e.NewValue,
			&e.Revision,
			&e.Rationale,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
