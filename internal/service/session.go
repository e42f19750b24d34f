package service

import (
	"context"
	"fmt"
	"sync"

	"fmeaflow/internal/content"
	"fmeaflow/internal/model"
)

// Session is one user's in-memory editing handle on a single document. The
// shell owns the grid; the session owns the document row, the modified
// flag and the transition calls. A document that was never saved exists
// only here.
//
// Sessions are not shared between goroutines by the shell, but the
// background reconciler publishes updates concurrently, so the internal
// state is still lock-protected.
type Session struct {
	wf   *Workflow
	user *model.User

	mu       sync.Mutex
	doc      *model.Document
	modified bool
}

func (w *Workflow) NewSession(user *model.User) *Session {
	return &Session{wf: w, user: user}
}

// CreateNew starts an unsaved document from the built-in template. It gets
// its identity and initial version on first Save.
func (s *Session) CreateNew(name string) error {
	if name == "" {
		return fmt.Errorf("%w: document name is required", ErrInvalidInput)
	}
	tpl, err := content.Template()
	if err != nil {
		return fmt.Errorf("load template: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = &model.Document{
		Name:     name,
		AuthorID: s.user.ID,
		Status:   model.StatusDraft,
		Content:  append([]byte(nil), tpl...),
	}
	s.modified = true
	return nil
}

// LoadExisting replaces the session's document with a stored one.
func (s *Session) LoadExisting(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "session.LoadExisting")
	defer span.End()

	loaded, err := s.wf.Load(ctx, id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := loaded.Document
	s.doc = &doc
	s.modified = false
	return nil
}

// Refresh re-reads the stored row, typically after an update broadcast.
// Unsaved local changes win; a modified session does not refresh.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.doc == nil || !s.doc.Persisted() || s.modified {
		s.mu.Unlock()
		return nil
	}
	id := s.doc.ID
	s.mu.Unlock()
	return s.LoadExisting(ctx, id)
}

// SetContent replaces the spreadsheet snapshot after the shell edits it.
func (s *Session) SetContent(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return ErrNotFound
	}
	if s.doc.Status == model.StatusApproved {
		return fmt.Errorf("%w: approved documents are read-only", ErrDenied)
	}
	s.doc.Content = b
	s.modified = true
	return nil
}

// RecordCellEdit forwards a grid edit to the audit recorder. The recorder
// applies its own gates (persisted, Draft, below the title block), so the
// shell calls this for every edit.
func (s *Session) RecordCellEdit(ctx context.Context, cellRef, oldValue, newValue, rationale string) error {
	s.mu.Lock()
	doc := s.doc
	s.mu.Unlock()
	if doc == nil {
		return ErrNotFound
	}
	return s.wf.recorder.RecordCellEdit(ctx, doc, s.user, cellRef, oldValue, newValue, rationale)
}

// Save persists the session's document and reports whether a write
// happened. Saving an unmodified document does nothing and returns false,
// so the shell can tell the user there were no changes to save. The first
// save assigns identity and the initial version; later saves bump the
// patch version.
func (s *Session) Save(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return false, ErrNotFound
	}
	if !s.modified && s.doc.Persisted() {
		return false, nil
	}

	if !s.doc.Persisted() {
		created, err := s.wf.Persist(ctx, s.doc)
		if err != nil {
			return false, err
		}
		s.doc = created
	} else {
		if err := s.wf.Save(ctx, s.doc); err != nil {
			return false, err
		}
	}
	s.modified = false
	return true, nil
}

// Submit saves any pending changes and hands the document to the approver.
// On failure the document stays in Draft with its prior version.
func (s *Session) Submit(ctx context.Context, approverID string) error {
	if _, err := s.Save(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := s.wf.Submit(ctx, s.doc, approverID)
	if err != nil {
		return err
	}
	s.doc = next
	s.modified = false
	return nil
}

// Approve finalizes the review with the session user as the actor.
func (s *Session) Approve(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return ErrNotFound
	}
	next, err := s.wf.Approve(ctx, s.doc, s.user)
	if err != nil {
		return err
	}
	s.doc = next
	s.modified = false
	return nil
}

// Reject returns the document to the author.
func (s *Session) Reject(ctx context.Context, rationale string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return ErrNotFound
	}
	next, err := s.wf.Reject(ctx, s.doc, s.user, rationale)
	if err != nil {
		return err
	}
	s.doc = next
	s.modified = false
	return nil
}

// Rename changes the document's display name in place.
func (s *Session) Rename(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return ErrNotFound
	}
	return s.wf.Rename(ctx, s.doc, s.user.ID, name)
}

// Document returns a snapshot copy of the session's document.
func (s *Session) Document() (model.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return model.Document{}, false
	}
	return *s.doc, true
}

// Modified reports whether the session holds unsaved changes.
func (s *Session) Modified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modified
}
