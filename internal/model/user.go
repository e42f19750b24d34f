package model

// User is an author/approver identity. Users referenced by documents are
// treated as immutable; referential integrity matters more than mutability.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
