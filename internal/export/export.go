// Package export renders job records as the spreadsheet and CSV artifacts
// handed back to the user.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/JakeFAU/teams-titles-scraper/internal/scraper"
)

// Artifact base names.
const (
	SingleBase = "uf_job_single"
	FullBase   = "uf_jobs_full"

	FormattedSuffix = "_formatted"
)

// Content types of the produced files.
const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeCSV  = "text/csv; charset=utf-8"
)

const sheetName = "Sheet1"

// File is one rendered artifact.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Bundle holds every artifact produced for one run.
type Bundle struct {
	Base      string
	Workbook  []byte
	CSV       []byte
	Formatted []byte
	// FormatErr is set when styling failed; Formatted is then nil.
	FormatErr error
}

// BaseName returns the artifact prefix for a run.
func BaseName(single bool) string {
	if single {
		return SingleBase
	}
	return FullBase
}

// Render writes records to an xlsx workbook, a CSV file, and a styled copy
// of the workbook. A styling failure is recorded on the bundle rather than
// returned.
func Render(records []scraper.JobRecord, maxColumnWidth int) (*Bundle, error) {
	b := &Bundle{Base: BaseName(len(records) == 1)}

	wb, err := Workbook(records)
	if err != nil {
		return nil, err
	}
	b.Workbook = wb

	csvData, err := CSV(records)
	if err != nil {
		return nil, err
	}
	b.CSV = csvData

	b.Formatted, b.FormatErr = Format(wb, maxColumnWidth)
	return b, nil
}

// Primary returns the artifact a caller should present: the styled
// workbook, or the raw workbook when styling failed.
func (b *Bundle) Primary() File {
	if b.Formatted != nil {
		return File{Name: b.Base + FormattedSuffix + ".xlsx", ContentType: ContentTypeXLSX, Data: b.Formatted}
	}
	return File{Name: b.Base + ".xlsx", ContentType: ContentTypeXLSX, Data: b.Workbook}
}

// Files lists every artifact in the bundle.
func (b *Bundle) Files() []File {
	files := []File{
		{Name: b.Base + ".xlsx", ContentType: ContentTypeXLSX, Data: b.Workbook},
		{Name: b.Base + ".csv", ContentType: ContentTypeCSV, Data: b.CSV},
	}
	if b.Formatted != nil {
		files = append(files, b.Primary())
	}
	return files
}

// Workbook renders records to an unstyled xlsx workbook.
func Workbook(records []scraper.JobRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // in-memory file

	if err := f.SetSheetRow(sheetName, "A1", toRow(scraper.Columns)); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheetName, cell, toRow(rec.Values())); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// CSV renders records as comma-separated text with a header row.
func CSV(records []scraper.JobRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(scraper.Columns); err != nil {
		return nil, fmt.Errorf("csv header: %w", err)
	}
	for _, rec := range records {
		if err := w.Write(rec.Values()); err != nil {
			return nil, fmt.Errorf("csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("csv flush: %w", err)
	}
	return buf.Bytes(), nil
}

func toRow(values []string) *[]any {
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	return &row
}
