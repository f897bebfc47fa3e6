package view

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/xuri/excelize/v2"

	"screen-capture-extractor/src/table"
)

const excelExt = ".xlsx"

// ExportCSV writes t with the same quoting rules as the capture table.
func ExportCSV(fs afero.Fs, path string, t table.Table) error {
	if err := table.WriteFile(fs, path, t); err != nil {
		return fmt.Errorf("failed to export CSV: %w", err)
	}
	log.Info().Str("path", path).Int("rows", len(t.Rows)).Msg("exported CSV")
	return nil
}

// ExportExcel writes t as a single-sheet workbook and returns the path written, which
// always ends in .xlsx.
func ExportExcel(fs afero.Fs, path string, t table.Table) (string, error) {
	if !strings.EqualFold(filepath.Ext(path), excelExt) {
		path += excelExt
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close workbook")
		}
	}()
	if err := fillSheet(f, f.GetSheetName(0), t); err != nil {
		return path, fmt.Errorf("failed to export Excel: %w", err)
	}

	err := table.WriteAtomic(fs, path, func(w io.Writer) error {
		_, err := f.WriteTo(w)
		return err
	})
	if err != nil {
		return path, fmt.Errorf("failed to export Excel: %w", err)
	}
	log.Info().Str("path", path).Int("rows", len(t.Rows)).Msg("exported Excel")
	return path, nil
}

func fillSheet(f *excelize.File, sheet string, t table.Table) error {
	if len(t.Header) == 0 {
		return nil
	}
	if err := setRow(f, sheet, 1, t.Header); err != nil {
		return err
	}
	for i, r := range t.Rows {
		if err := setRow(f, sheet, i+2, r.Render(t.Header)); err != nil {
			return err
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// setRow writes values as text cells; captured values stay exactly as stored.
func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return f.SetSheetRow(sheet, cell, &vals)
}
