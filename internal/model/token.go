package model

import "time"

// TokenValidity is how long an issued approval token stays redeemable.
const TokenValidity = 7 * 24 * time.Hour

// ApprovalToken is a single-use capability granting one approve-or-reject
// decision on one document via the email reply channel. The ID is an
// unguessable 128-bit random UUID; Used flips false to true exactly once.
type ApprovalToken struct {
	ID         string      `json:"id"`
	DocumentID string      `json:"document_id"`
	Action     TokenAction `json:"action"`
	Used       bool        `json:"used"`
	ExpiresAt  time.Time   `json:"expires_at"`
}

// Expired reports whether the token's validity window has passed at now.
func (t *ApprovalToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
