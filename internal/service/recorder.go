package service

import (
	"context"
	"fmt"
	"time"

	"fmeaflow/internal/content"
	"fmeaflow/internal/model"
	"fmeaflow/internal/repository"
)

// Recorder writes and queries the append-only change history. Cell edits
// are only recorded for persisted documents still in Draft, and only for
// cells below the title block; everything else is silently skipped so the
// editing surface can call it unconditionally.
type Recorder struct {
	audits repository.AuditRepository
	now    func() time.Time
}

func NewRecorder(audits repository.AuditRepository) *Recorder {
	return &Recorder{audits: audits, now: time.Now}
}

// RecordCellEdit appends one cell-change record. Returns nil without
// writing when the edit falls outside the recordable window.
func (r *Recorder) RecordCellEdit(ctx context.Context, doc *model.Document, user *model.User, cellRef, oldValue, newValue, rationale string) error {
	if !doc.Persisted() || doc.Status != model.StatusDraft {
		return nil
	}
	row, err := content.CellRow(cellRef)
	if err != nil {
		return fmt.Errorf("%w: bad cell reference %q", ErrInvalidInput, cellRef)
	}
	if content.InTitleBlock(row) {
		return nil
	}

	entry := &model.AuditLog{
		DocumentID: doc.ID,
		UserID:     user.ID,
		Timestamp:  r.now(),
		Field:      cellRef,
		OldValue:   oldValue,
		NewValue:   newValue,
		Revision:   doc.Version,
		Rationale:  rationale,
	}
	if _, err := r.audits.Append(ctx, entry); err != nil {
		return fmt.Errorf("append cell edit: %w", err)
	}
	return nil
}

// RecordFieldChange appends a record for a non-cell mutation such as a
// rename. Unlike cell edits there is no lifecycle gate; callers decide.
func (r *Recorder) RecordFieldChange(ctx context.Context, doc *model.Document, userID, field, oldValue, newValue string) error {
	entry := &model.AuditLog{
		DocumentID: doc.ID,
		UserID:     userID,
		Timestamp:  r.now(),
		Field:      field,
		OldValue:   oldValue,
		NewValue:   newValue,
		Revision:   doc.Version,
	}
	if _, err := r.audits.Append(ctx, entry); err != nil {
		return fmt.Errorf("append field change: %w", err)
	}
	return nil
}

// History returns a document's change records, newest first.
func (r *Recorder) History(ctx context.Context, documentID string) ([]model.AuditLog, error) {
	if documentID == "" {
		return nil, ErrIDRequired
	}
	return r.audits.ListByDocument(ctx, documentID)
}

// Search runs the system-wide filtered audit query.
func (r *Recorder) Search(ctx context.Context, f repository.AuditFilter) ([]model.AuditLog, error) {
	return r.audits.List(ctx, f)
}
