package export

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// Column width bounds, in characters.
const (
	DefaultMaxColumnWidth = 50
	MinColumnWidth        = 5
	headerRowHeight       = 24
	headerFill            = "DDDDDD"
)

var thinBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
}

// Format styles a raw workbook: a bold shaded header, bordered and wrapped
// body cells, and column widths fitted to content up to maxWidth.
func Format(raw []byte, maxWidth int) ([]byte, error) {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxColumnWidth
	}
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close() //nolint:errcheck // in-memory file

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "000000"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
		Border:    thinBorder,
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	bodyStyle, err := f.NewStyle(&excelize.Style{
		Border:    thinBorder,
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
	})
	if err != nil {
		return nil, fmt.Errorf("body style: %w", err)
	}

	maxCols := 0
	for _, row := range rows {
		maxCols = max(maxCols, len(row))
	}

	last, err := excelize.CoordinatesToCellName(maxCols, 1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}
	if err := f.SetRowHeight(sheet, 1, headerRowHeight); err != nil {
		return nil, fmt.Errorf("header height: %w", err)
	}

	for r, row := range rows[1:] {
		for c, val := range row {
			if strings.TrimSpace(val) == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellStyle(sheet, cell, cell, bodyStyle); err != nil {
				return nil, fmt.Errorf("style %s: %w", cell, err)
			}
		}
	}

	for c := 0; c < maxCols; c++ {
		name, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return nil, err
		}
		width := columnWidth(rows, c, maxWidth)
		if err := f.SetColWidth(sheet, name, name, float64(width)); err != nil {
			return nil, fmt.Errorf("width %s: %w", name, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// columnWidth is the longest line in column c plus padding, clamped to
// [MinColumnWidth, maxWidth].
func columnWidth(rows [][]string, c, maxWidth int) int {
	longest := 0
	for _, row := range rows {
		if c >= len(row) {
			continue
		}
		for _, line := range splitLines(row[c]) {
			longest = max(longest, utf8.RuneCountInString(line))
		}
	}
	width := min(longest+2, maxWidth)
	return max(width, MinColumnWidth)
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(s, "\n")
}
