package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"fmeaflow/internal/model"
	"fmeaflow/internal/repository"
)

// WorkflowPostgres executes the multi-row workflow transitions. Every
// public method is one transaction; partial effects never commit.
type WorkflowPostgres struct {
	db *sql.DB
}

// NewWorkflowPostgres creates a new WorkflowPostgres repository.
func NewWorkflowPostgres(db *sql.DB) *WorkflowPostgres {
	return &WorkflowPostgres{db: db}
}

var _ repository.WorkflowRepository = (*WorkflowPostgres)(nil)

// SubmitForReview writes the document transition, audit entry and token
// pair, then runs notify before committing. A notify failure rolls the
// whole submission back.
func (r *WorkflowPostgres) SubmitForReview(ctx context.Context, sub repository.Submission, notify func(context.Context) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin submit tx: %w", err)
	}
	defer tx.Rollback()

	if err := updateTransition(ctx, tx, sub.Document); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if err := insertAudit(ctx, tx, sub.Entry); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	const qToken = `
		INSERT INTO approval_tokens (id, document_id, action, used, expires_at)
		VALUES ($1, $2, $3, FALSE, $4)
	`
	for _, t := range sub.Tokens {
		if _, err := tx.ExecContext(ctx, qToken, t.ID, t.DocumentID, t.Action, t.ExpiresAt); err != nil {
			return fmt.Errorf("insert approval token: %w", err)
		}
	}

	if notify != nil {
		if err := notify(ctx); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ApplyDecision marks the token used and commits the document transition
// and audit entry in the same unit of work.
func (r *WorkflowPostgres) ApplyDecision(ctx context.Context, dec repository.Decision) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin decision tx: %w", err)
	}
	defer tx.Rollback()

	const qRedeem = `UPDATE approval_tokens SET used = TRUE WHERE id = $1 AND used = FALSE`
	res, err := tx.ExecContext(ctx, qRedeem, dec.TokenID)
	if err != nil {
		return fmt.Errorf("redeem token: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.ErrTokenSpent
	}

	if err := updateTransition(ctx, tx, dec.Document); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if err := insertAudit(ctx, tx, dec.Entry); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	return tx.Commit()
}

// Finalize commits a local approve/reject transition.
func (r *WorkflowPostgres) Finalize(ctx context.Context, doc *model.Document, entry *model.AuditLog) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin finalize tx: %w", err)
	}
	defer tx.Rollback()

	if err := updateTransition(ctx, tx, doc); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if err := insertAudit(ctx, tx, entry); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	return tx.Commit()
}

// updateTransition writes every column a status transition may touch.
func updateTransition(ctx context.Context, tx *sql.Tx, doc *model.Document) error {
	const q = `
		UPDATE documents
		SET status = $1, version = $2, approver_id = NULLIF($3, '')::uuid,
		    approved_by = $4, completed_at = $5, content = $6,
		    storage_path = $7, modified_at = $8
		WHERE id = $9
	`
	var completed sql.NullTime
	if doc.CompletedAt != nil {
		completed = sql.NullTime{Time: *doc.CompletedAt, Valid: true}
	}
	res, err := tx.ExecContext(ctx, q,
		doc.Status,
		doc.Version,
		doc.ApproverID,
		doc.ApprovedBy,
		completed,
		doc.Content,
		doc.StoragePath,
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

func insertAudit(ctx context.Context, tx *sql.Tx, entry *model.AuditLog) error {
	const q = `
		INSERT INTO audit_logs (document_id, user_id, ts, field, old_value, new_value, revision, rationale)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := tx.ExecContext(ctx, q,
		entry.DocumentID,
		entry.UserID,
		entry.Timestamp,
		entry.Field,
		entry.OldValue,
		entry.NewValue,
		entry.Revision,
		entry.Rationale,
	)
	return err
}
