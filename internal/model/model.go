package model

// Package model contains domain models/data structures.
// Keep it free of persistence concerns; no business logic here.

// Status is the lifecycle state of a document.
type Status string

const (
	// StatusDraft is the only state in which the author may edit content.
	StatusDraft Status = "Draft"
	// StatusUnderReview means the document has been submitted and awaits a decision.
	StatusUnderReview Status = "Under Review"
	// StatusApproved is terminal; the document is read-only.
	StatusApproved Status = "Approved"
)

// Valid reports whether s is one of the defined lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusUnderReview, StatusApproved:
		return true
	}
	return false
}

// TokenAction is the single decision an approval token authorizes.
type TokenAction string

const (
	ActionApprove TokenAction = "Approve"
	ActionReject  TokenAction = "Reject"
)
