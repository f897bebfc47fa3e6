package gui

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"screen-capture-extractor/src/table"
)

func TestModelEmpty(t *testing.T) {
	m := newModel(table.Table{})
	rows, cols := m.dims()
	assert.Equal(t, 1, rows)
	assert.Equal(t, 1, cols)
	text, header := m.cell(0, 0)
	assert.Equal(t, "No captures yet", text)
	assert.True(t, header)
}

func TestModelCells(t *testing.T) {
	m := newModel(table.Table{
		Header: []string{"a", "b"},
		Rows:   []table.Row{table.NewRow("b", "2"), table.NewRow("a", "3", "b", "4")},
	})
	rows, cols := m.dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 2, cols)

	text, header := m.cell(0, 1)
	assert.Equal(t, "b", text)
	assert.True(t, header)

	text, header = m.cell(1, 0)
	assert.Equal(t, "", text)
	assert.False(t, header)

	text, _ = m.cell(2, 1)
	assert.Equal(t, "4", text)
	assert.Equal(t, "/x.csv: 2 rows, 2 columns", m.summary("/x.csv"))
}

func TestModelKeepsNewestRows(t *testing.T) {
	tbl := table.Table{Header: []string{"n"}}
	for i := 0; i < maxPreviewRows+10; i++ {
		tbl.Rows = append(tbl.Rows, table.NewRow("n", fmt.Sprint(i)))
	}
	m := newModel(tbl)
	rows, _ := m.dims()
	assert.Equal(t, maxPreviewRows+1, rows)

	first, _ := m.cell(1, 0)
	last, _ := m.cell(maxPreviewRows, 0)
	assert.Equal(t, "10", first)
	assert.Equal(t, fmt.Sprint(maxPreviewRows+9), last)
	assert.Contains(t, m.summary("/x.csv"), "showing last 500")
}
