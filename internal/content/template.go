package content

import (
	"fmt"
	"sync"

	"github.com/xuri/excelize/v2"
)

var (
	templateOnce  sync.Once
	templateBytes []byte
	templateErr   error
)

// Template returns the serialized blank FMEA workbook used for new
// documents. Generation is expensive relative to how often the result
// changes (never, per process), so the bytes are memoized with
// first-write-wins semantics. Callers must not mutate the returned slice.
func Template() ([]byte, error) {
	templateOnce.Do(func() {
		templateBytes, templateErr = buildTemplate()
	})
	return templateBytes, templateErr
}

func buildTemplate() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	labels := map[string]string{
		"A4": "Product / Part:",
		"F4": "FMEA ID:",
		"H4": "Version:",
		"J4": "Last Modified:",
		"A6": "Project:",
		"F6": "Responsible:",
		"H6": "Approved By:",
		"J6": "Date Completed:",
		"A8": "Team:",
	}
	for cell, label := range labels {
		if err := f.SetCellValue(sheetName, cell, label); err != nil {
			return nil, fmt.Errorf("template label %s: %w", cell, err)
		}
	}

	if err := f.SetCellValue(sheetName, "A1", "Failure Mode and Effects Analysis"); err != nil {
		return nil, err
	}
	if err := f.MergeCell(sheetName, "A1", "K2"); err != nil {
		return nil, fmt.Errorf("template header merge: %w", err)
	}

	// Worksheet header row right below the title block.
	headers := []string{
		"Item / Function", "Potential Failure Mode", "Potential Effects",
		"Severity", "Potential Causes", "Occurrence",
		"Current Controls", "Detection", "RPN",
		"Recommended Actions", "Responsibility",
	}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, TitleBlockRows+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, fmt.Errorf("template header %s: %w", cell, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize template: %w", err)
	}
	return buf.Bytes(), nil
}
