// Package content performs the few workbook operations the workflow itself
// needs on the otherwise opaque document snapshot: mirroring title-block
// metadata into indexed fields, syncing the version cell, and stamping the
// approval cells when a decision lands. Rendering and layout belong to the
// spreadsheet component, not here.
package content

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Sheet1"

// Title-block cell map. These references are part of the template contract
// shared with the spreadsheet shell.
const (
	cellProductPart      = "B4"
	cellFmeaID           = "G4"
	cellVersion          = "I4"
	cellModified         = "K4"
	cellProjectName      = "B6"
	cellResponsibleParty = "G6"
	cellApprovedBy       = "I6"
	cellCompletedAt      = "K6"
	cellTeam             = "B8"
)

// TitleBlockRows is the number of leading worksheet rows occupied by the
// fixed title block. Cell edits inside it are template bookkeeping, not
// engineering changes, and are excluded from the audit trail.
const TitleBlockRows = 8

// InTitleBlock reports whether the 1-based worksheet row falls inside the
// fixed title-block region.
func InTitleBlock(row int) bool {
	return row <= TitleBlockRows
}

// CellRow resolves an A1-style cell reference to its 1-based row.
func CellRow(ref string) (int, error) {
	_, row, err := excelize.CellNameToCoordinates(ref)
	if err != nil {
		return 0, fmt.Errorf("resolve cell %q: %w", ref, err)
	}
	return row, nil
}

// Metadata is the set of descriptive fields mirrored out of the title block.
type Metadata struct {
	ProductPart      string
	FmeaID           string
	ProjectName      string
	ResponsibleParty string
	ApprovedBy       string
	Team             string
}

// ReadMetadata extracts the title-block fields from a workbook snapshot.
func ReadMetadata(b []byte) (*Metadata, error) {
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	md := &Metadata{}
	for cell, dst := range map[string]*string{
		cellProductPart:      &md.ProductPart,
		cellFmeaID:           &md.FmeaID,
		cellProjectName:      &md.ProjectName,
		cellResponsibleParty: &md.ResponsibleParty,
		cellApprovedBy:       &md.ApprovedBy,
		cellTeam:             &md.Team,
	} {
		v, err := f.GetCellValue(sheetName, cell)
		if err != nil {
			return nil, fmt.Errorf("read cell %s: %w", cell, err)
		}
		*dst = v
	}
	return md, nil
}

// StampVersion writes the current version and modified timestamp into the
// title block and returns the updated snapshot.
func StampVersion(b []byte, version string, modified time.Time) ([]byte, error) {
	return update(b, map[string]any{
		cellVersion:  version,
		cellModified: modified.Format("2006-01-02 15:04"),
	})
}

// StampApproval writes the approver name and completion timestamp into the
// title block, matching what the approval email promised the approver.
func StampApproval(b []byte, approvedBy string, completed time.Time) ([]byte, error) {
	return update(b, map[string]any{
		cellApprovedBy:  approvedBy,
		cellCompletedAt: completed.Format("2006-01-02 15:04"),
	})
}

func update(b []byte, cells map[string]any) ([]byte, error) {
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	for cell, v := range cells {
		if err := f.SetCellValue(sheetName, cell, v); err != nil {
			return nil, fmt.Errorf("write cell %s: %w", cell, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}
