package repository

import (
	"context"
	"errors"

	"fmeaflow/internal/model"
)

// ErrTokenSpent is returned by ApplyDecision when the token's used flag was
// already set — the guard that makes redemption happen at most once even
// under concurrent polls.
var ErrTokenSpent = errors.New("approval token already used")

// Submission bundles every row a submit transition must commit together:
// the document's new status/version/approver, the status audit entry and
// the freshly issued token pair.
type Submission struct {
	Document *model.Document
	Entry    *model.AuditLog
	Tokens   [2]model.ApprovalToken
}

// Decision bundles a token redemption with the document transition it
// authorizes. The token's used flag, the document row and the audit entry
// commit in the same unit of work.
type Decision struct {
	Document *model.Document
	Entry    *model.AuditLog
	TokenID  string
}

// WorkflowRepository executes the multi-row transitions that demand joint
// consistency. Each method is a single transaction.
type WorkflowRepository interface {
	// SubmitForReview writes the document transition, its audit entry and
	// both tokens, then invokes notify before committing. If notify returns
	// an error the transaction rolls back and none of the rows persist —
	// this is what makes a failed approval email leave the document in
	// Draft with its prior version. A concurrent redemption can never
	// observe a half-issued token pair.
	SubmitForReview(ctx context.Context, sub Submission, notify func(context.Context) error) error

	// ApplyDecision marks the token used (exactly once) and commits the
	// resulting document transition and audit entry together.
	ApplyDecision(ctx context.Context, dec Decision) error

	// Finalize commits a local approve/reject: document row plus audit
	// entry, no token involved.
	Finalize(ctx context.Context, doc *model.Document, entry *model.AuditLog) error
}
