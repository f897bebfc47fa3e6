package gui

import (
	"fmt"

	"screen-capture-extractor/src/table"
)

// maxPreviewRows caps the grid; the newest rows are kept.
const maxPreviewRows = 500

// model is the grid content: row 0 is the header.
type model struct {
	header  []string
	records [][]string
	total   int
}

func newModel(t table.Table) model {
	records := t.Records()
	m := model{header: t.Header, total: len(records)}
	if len(records) > maxPreviewRows {
		records = records[len(records)-maxPreviewRows:]
	}
	m.records = records
	return m
}

func (m model) dims() (rows, cols int) {
	if len(m.header) == 0 {
		return 1, 1
	}
	return len(m.records) + 1, len(m.header)
}

// cell returns the text at (row, col) and whether it is a header cell.
func (m model) cell(row, col int) (string, bool) {
	if len(m.header) == 0 {
		return "No captures yet", true
	}
	if row == 0 {
		return m.header[col], true
	}
	rec := m.records[row-1]
	if col >= len(rec) {
		return "", false
	}
	return rec[col], false
}

func (m model) summary(path string) string {
	if m.total > len(m.records) {
		return fmt.Sprintf("%s: %d rows, %d columns (showing last %d)", path, m.total, len(m.header), len(m.records))
	}
	return fmt.Sprintf("%s: %d rows, %d columns", path, m.total, len(m.header))
}
