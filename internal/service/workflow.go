package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fmeaflow/internal/content"
	"fmeaflow/internal/model"
	"fmeaflow/internal/repository"
	"fmeaflow/internal/storage"
	"fmeaflow/internal/version"
)

var tracer = otel.Tracer("fmeaflow/internal/service")

// Workflow is the document lifecycle engine. It owns the transition table
// (Draft -> Under Review -> Approved / back to Draft), the version bumps
// that ride on each transition, the audit entries, and the rollback
// semantics around the approval notification.
//
// Transitions that must be jointly consistent go through the workflow
// repository as single transactions; the engine only prepares the rows.
type Workflow struct {
	docs     repository.DocumentRepository
	users    repository.UserRepository
	flow     repository.WorkflowRepository
	tokens   *TokenService
	notifier *Notifier
	recorder *Recorder
	updates  *Broadcaster
	archive  storage.Storage
	now      func() time.Time
}

func NewWorkflow(
	docs repository.DocumentRepository,
	users repository.UserRepository,
	flow repository.WorkflowRepository,
	tokens *TokenService,
	notifier *Notifier,
	recorder *Recorder,
	updates *Broadcaster,
	archive storage.Storage,
) *Workflow {
	return &Workflow{
		docs:     docs,
		users:    users,
		flow:     flow,
		tokens:   tokens,
		notifier: notifier,
		recorder: recorder,
		updates:  updates,
		archive:  archive,
		now:      time.Now,
	}
}

// Load returns a document with its author and approver resolved.
func (w *Workflow) Load(ctx context.Context, id string) (*model.DocumentWithUsers, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	doc, err := w.docs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return doc, nil
}

// List returns a page of documents without content payloads.
func (w *Workflow) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	if pq.Limit <= 0 || pq.Limit > 100 {
		pq.Limit = 20
	}
	if pq.Offset < 0 {
		pq.Offset = 0
	}
	return w.docs.List(ctx, pq)
}

// Persist performs the first save of an in-memory document: assigns the
// initial version, mirrors the title-block metadata and inserts the row.
func (w *Workflow) Persist(ctx context.Context, doc *model.Document) (*model.Document, error) {
	if doc.Persisted() {
		return nil, fmt.Errorf("%w: document already persisted", ErrInvalidInput)
	}
	if doc.Name == "" {
		return nil, fmt.Errorf("%w: document name is required", ErrInvalidInput)
	}
	if doc.Version == "" {
		doc.Version = "0.0.1"
	}
	doc.Status = model.StatusDraft
	now := w.now()
	doc.CreatedAt = now
	doc.ModifiedAt = now
	if err := w.syncContent(doc); err != nil {
		return nil, err
	}
	created, err := w.docs.Create(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return created, nil
}

// Save persists content changes on an already-stored Draft document and
// bumps the patch version; submit and approve own the minor and major bumps.
func (w *Workflow) Save(ctx context.Context, doc *model.Document) error {
	if !doc.Persisted() {
		return ErrIDRequired
	}
	if doc.Status != model.StatusDraft {
		return fmt.Errorf("%w: only Draft documents can be saved", ErrDenied)
	}
	doc.Version = version.IncrementPatch(doc.Version)
	if err := w.syncContent(doc); err != nil {
		return err
	}
	doc.ModifiedAt = w.now()
	if err := w.docs.Update(ctx, doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update document: %w", err)
	}
	return nil
}

// Submit moves a Draft to Under Review: minor version bump, token pair,
// audit entry and the approval email, all succeeding or failing together.
// On any failure the document keeps its prior state, including its version.
func (w *Workflow) Submit(ctx context.Context, doc *model.Document, approverID string) (*model.Document, error) {
	ctx, span := tracer.Start(ctx, "workflow.Submit",
		trace.WithAttributes(attribute.String("document.id", doc.ID)))
	defer span.End()

	if !doc.Persisted() {
		return nil, fmt.Errorf("%w: save the document before submitting", ErrInvalidInput)
	}
	if doc.Status != model.StatusDraft {
		return nil, fmt.Errorf("%w: only Draft documents can be submitted", ErrDenied)
	}
	if approverID == "" {
		return nil, fmt.Errorf("%w: an approver is required", ErrInvalidInput)
	}
	if approverID == doc.AuthorID {
		return nil, fmt.Errorf("%w: authors cannot approve their own documents", ErrDenied)
	}

	approver, err := w.users.FindByID(ctx, approverID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: approver", ErrNotFound)
		}
		return nil, fmt.Errorf("find approver: %w", err)
	}
	if !model.ValidEmail(approver.Email) {
		return nil, fmt.Errorf("%w: approver has no usable email address", ErrInvalidInput)
	}

	now := w.now()
	next := *doc
	next.Status = model.StatusUnderReview
	next.Version = version.IncrementMinor(doc.Version)
	next.ApproverID = approver.ID
	next.ModifiedAt = now

	stamped, err := content.StampVersion(doc.Content, next.Version, now)
	if err != nil {
		return nil, fmt.Errorf("stamp version: %w", err)
	}
	next.Content = stamped

	toks := w.tokens.IssuePair(doc.ID)
	entry := &model.AuditLog{
		DocumentID: doc.ID,
		UserID:     doc.AuthorID,
		Timestamp:  now,
		Field:      "Status",
		OldValue:   string(model.StatusDraft),
		NewValue:   string(model.StatusUnderReview),
		Revision:   next.Version,
		Rationale:  "Submitted for review",
	}

	sub := repository.Submission{Document: &next, Entry: entry, Tokens: toks}
	err = w.flow.SubmitForReview(ctx, sub, func(ctx context.Context) error {
		return w.notifier.RequestApproval(ctx, &next, approver, toks)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	w.updates.Publish(DocumentUpdate{DocumentID: next.ID, Status: next.Status, Version: next.Version})
	return &next, nil
}

// Approve finalizes a review in the author's shell: major version bump,
// approval stamp inside the content, rendition archived to object storage.
// Only the assigned approver may call it.
func (w *Workflow) Approve(ctx context.Context, doc *model.Document, actor *model.User) (*model.Document, error) {
	ctx, span := tracer.Start(ctx, "workflow.Approve",
		trace.WithAttributes(attribute.String("document.id", doc.ID)))
	defer span.End()

	if err := w.guardDecision(doc, actor.ID); err != nil {
		return nil, err
	}

	next, entry, err := w.approvedState(doc, actor.Name, "Approved via review")
	if err != nil {
		return nil, err
	}
	if err := w.commitWithArchive(ctx, next, func(ctx context.Context) error {
		return w.flow.Finalize(ctx, next, entry)
	}); err != nil {
		span.RecordError(err)
		return nil, err
	}

	w.updates.Publish(DocumentUpdate{DocumentID: next.ID, Status: next.Status, Version: next.Version})
	return next, nil
}

// Reject returns a document under review to Draft. The version is left
// untouched; the minor bump from submit stands.
func (w *Workflow) Reject(ctx context.Context, doc *model.Document, actor *model.User, rationale string) (*model.Document, error) {
	if err := w.guardDecision(doc, actor.ID); err != nil {
		return nil, err
	}

	next, entry := w.rejectedState(doc, actor.ID, rationale)
	if err := w.flow.Finalize(ctx, next, entry); err != nil {
		return nil, fmt.Errorf("finalize rejection: %w", err)
	}

	w.updates.Publish(DocumentUpdate{DocumentID: next.ID, Status: next.Status, Version: next.Version})
	return next, nil
}

// ApplyTokenDecision executes the transition a redeemed reply token
// authorizes. The token itself is the capability; no actor check beyond
// the document being under review. repository.ErrTokenSpent surfaces when
// a concurrent poll won the redemption race.
func (w *Workflow) ApplyTokenDecision(ctx context.Context, tok *model.ApprovalToken) error {
	ctx, span := tracer.Start(ctx, "workflow.ApplyTokenDecision",
		trace.WithAttributes(attribute.String("document.id", tok.DocumentID)))
	defer span.End()

	loaded, err := w.Load(ctx, tok.DocumentID)
	if err != nil {
		return err
	}
	doc := &loaded.Document
	if doc.Status != model.StatusUnderReview {
		return fmt.Errorf("%w: document is not under review", ErrDenied)
	}

	switch tok.Action {
	case model.ActionApprove:
		approverName := doc.ApproverID
		if loaded.Approver != nil {
			approverName = loaded.Approver.Name
		}
		next, entry, err := w.approvedState(doc, approverName, "Approved by email reply")
		if err != nil {
			return err
		}
		dec := repository.Decision{Document: next, Entry: entry, TokenID: tok.ID}
		if err := w.commitWithArchive(ctx, next, func(ctx context.Context) error {
			return w.flow.ApplyDecision(ctx, dec)
		}); err != nil {
			span.RecordError(err)
			return err
		}
		w.updates.Publish(DocumentUpdate{DocumentID: next.ID, Status: next.Status, Version: next.Version})
		return nil

	case model.ActionReject:
		next, entry := w.rejectedState(doc, doc.ApproverID, "Rejected by email reply")
		dec := repository.Decision{Document: next, Entry: entry, TokenID: tok.ID}
		if err := w.flow.ApplyDecision(ctx, dec); err != nil {
			span.RecordError(err)
			return err
		}
		w.updates.Publish(DocumentUpdate{DocumentID: next.ID, Status: next.Status, Version: next.Version})
		return nil

	default:
		return fmt.Errorf("%w: unknown token action %q", ErrInvalidInput, tok.Action)
	}
}

// Rename changes a document's display name and records the change.
func (w *Workflow) Rename(ctx context.Context, doc *model.Document, actorID, name string) error {
	if !doc.Persisted() {
		return ErrIDRequired
	}
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if name == doc.Name {
		return nil
	}
	if err := w.docs.Rename(ctx, doc.ID, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("rename document: %w", err)
	}
	if err := w.recorder.RecordFieldChange(ctx, doc, actorID, "Name", doc.Name, name); err != nil {
		return err
	}
	doc.Name = name
	w.updates.Publish(DocumentUpdate{DocumentID: doc.ID, Status: doc.Status, Version: doc.Version})
	return nil
}

// RenditionURL returns a time-limited download link for a document's
// archived rendition. Only approved revisions have one.
func (w *Workflow) RenditionURL(ctx context.Context, id string) (string, error) {
	loaded, err := w.Load(ctx, id)
	if err != nil {
		return "", err
	}
	if loaded.StoragePath == "" {
		return "", fmt.Errorf("%w: no archived rendition", ErrNotFound)
	}
	url, err := w.archive.PresignGet(ctx, loaded.StoragePath, 15*time.Minute)
	if err != nil {
		return "", fmt.Errorf("presign rendition: %w", err)
	}
	return url, nil
}

// Updates exposes the broadcaster for session subscriptions.
func (w *Workflow) Updates() *Broadcaster { return w.updates }

func (w *Workflow) guardDecision(doc *model.Document, actorID string) error {
	if !doc.Persisted() {
		return ErrIDRequired
	}
	if doc.Status != model.StatusUnderReview {
		return fmt.Errorf("%w: document is not under review", ErrDenied)
	}
	if actorID == "" || actorID != doc.ApproverID {
		return fmt.Errorf("%w: only the assigned approver can decide", ErrDenied)
	}
	return nil
}

// approvedState builds the Approved document row and its audit entry:
// major version bump, approver and completion stamped into both the row
// and the content title block.
func (w *Workflow) approvedState(doc *model.Document, approvedBy, rationale string) (*model.Document, *model.AuditLog, error) {
	now := w.now()
	next := *doc
	next.Status = model.StatusApproved
	next.Version = version.IncrementMajor(doc.Version)
	next.ApprovedBy = approvedBy
	next.CompletedAt = &now
	next.ModifiedAt = now

	stamped, err := content.StampApproval(doc.Content, approvedBy, now)
	if err != nil {
		return nil, nil, fmt.Errorf("stamp approval: %w", err)
	}
	stamped, err = content.StampVersion(stamped, next.Version, now)
	if err != nil {
		return nil, nil, fmt.Errorf("stamp version: %w", err)
	}
	next.Content = stamped
	next.StoragePath = archiveKey(next.ID, next.Version)

	entry := &model.AuditLog{
		DocumentID: doc.ID,
		UserID:     doc.ApproverID,
		Timestamp:  now,
		Field:      "Status",
		OldValue:   string(model.StatusUnderReview),
		NewValue:   string(model.StatusApproved),
		Revision:   next.Version,
		Rationale:  rationale,
	}
	return &next, entry, nil
}

func (w *Workflow) rejectedState(doc *model.Document, actorID, rationale string) (*model.Document, *model.AuditLog) {
	now := w.now()
	next := *doc
	next.Status = model.StatusDraft
	next.ModifiedAt = now

	entry := &model.AuditLog{
		DocumentID: doc.ID,
		UserID:     actorID,
		Timestamp:  now,
		Field:      "Status",
		OldValue:   string(model.StatusUnderReview),
		NewValue:   string(model.StatusDraft),
		Revision:   next.Version,
		Rationale:  rationale,
	}
	return &next, entry
}

// commitWithArchive uploads the approved rendition first, then runs the
// database commit; if the commit fails the uploaded object is deleted so
// storage never holds renditions of transitions that did not happen.
func (w *Workflow) commitWithArchive(ctx context.Context, doc *model.Document, commit func(context.Context) error) error {
	_, err := w.archive.Put(ctx, doc.StoragePath, bytes.NewReader(doc.Content), storage.PutObjectOptions{
		Size:        int64(len(doc.Content)),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Metadata: map[string]string{
			"document-id": doc.ID,
			"version":     doc.Version,
		},
	})
	if err != nil {
		return fmt.Errorf("archive rendition: %w", err)
	}
	if err := commit(ctx); err != nil {
		if delErr := w.archive.Delete(ctx, doc.StoragePath); delErr != nil {
			return fmt.Errorf("commit approval: %w (orphan rendition %s: %v)", err, doc.StoragePath, delErr)
		}
		return err
	}
	return nil
}

// syncContent mirrors the title-block metadata out of the content and the
// version cell back into it, keeping row and snapshot consistent.
func (w *Workflow) syncContent(doc *model.Document) error {
	if len(doc.Content) == 0 {
		return fmt.Errorf("%w: document has no content", ErrInvalidInput)
	}
	stamped, err := content.StampVersion(doc.Content, doc.Version, w.now())
	if err != nil {
		return fmt.Errorf("stamp version: %w", err)
	}
	doc.Content = stamped

	md, err := content.ReadMetadata(doc.Content)
	if err != nil {
		return fmt.Errorf("read metadata: %w", err)
	}
	doc.ProductPart = md.ProductPart
	doc.FmeaID = md.FmeaID
	doc.ProjectName = md.ProjectName
	doc.ResponsibleParty = md.ResponsibleParty
	doc.Team = md.Team
	return nil
}

func archiveKey(documentID, ver string) string {
	return fmt.Sprintf("approved/%s/v%s.xlsx", documentID, ver)
}
