package model

import "time"

// Document is a versioned FMEA worksheet moving through the author/approver
// review cycle. Content is the opaque serialized spreadsheet snapshot; the
// descriptive fields next to it are mirrored out of the title block so they
// can be indexed and listed without opening the content.
type Document struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AuthorID    string `json:"author_id"`
	ApproverID  string `json:"approver_id,omitempty"`
	Status      Status `json:"status"`
	Version     string `json:"version"`
	Content     []byte `json:"-"`
	StoragePath string `json:"storage_path,omitempty"`

	FmeaID           string `json:"fmea_id,omitempty"`
	ProductPart      string `json:"product_part,omitempty"`
	ProjectName      string `json:"project_name,omitempty"`
	Team             string `json:"team,omitempty"`
	ResponsibleParty string `json:"responsible_party,omitempty"`
	ApprovedBy       string `json:"approved_by,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	ModifiedAt  time.Time  `json:"modified_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Persisted reports whether the document has been assigned an identity by
// the store. A document that exists only in memory (pre first save) has none.
func (d *Document) Persisted() bool {
	return d != nil && d.ID != ""
}

// DocumentWithUsers is the read projection used when opening a document:
// the row itself with its author and approver resolved.
type DocumentWithUsers struct {
	Document
	Author   *User `json:"author,omitempty"`
	Approver *User `json:"approver,omitempty"`
}
