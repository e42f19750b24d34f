package model

import "time"

// AuditLog is one immutable change record tied to a document. Rows are
// append-only; nothing in the system updates or deletes them.
type AuditLog struct {
	ID         int64     `json:"id"`
	DocumentID string    `json:"document_id"`
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user_name,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Field      string    `json:"field"`
	OldValue   string    `json:"old_value"`
	NewValue   string    `json:"new_value"`
	Revision   string    `json:"revision"`
	Rationale  string    `json:"rationale"`
}
