package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
)

var (
	ErrDuplicateColumn = errors.New("duplicate column in header")
	ErrRowWidth        = errors.New("row has more fields than the header")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table is a header plus rows. Rows produced by Load carry every header column.
type Table struct {
	Header []string
	Rows   []Row
}

// Index returns the position of column in the header.
func (t Table) Index(column string) (int, bool) {
	for i, c := range t.Header {
		if c == column {
			return i, true
		}
	}
	return -1, false
}

// Records renders all rows against the header.
func (t Table) Records() [][]string {
	out := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Render(t.Header)
	}
	return out
}

// Load reads the table stored at path. A missing file yields an empty table.
func Load(fs afero.Fs, path string) (Table, error) {
	data, err := afero.ReadFile(fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return Table{}, nil
	}
	if err != nil {
		return Table{}, fmt.Errorf("failed to read table %s: %w", path, err)
	}

	raw, err := parse(data)
	if err != nil {
		return Table{}, fmt.Errorf("failed to parse table %s: %w", path, err)
	}

	t := Table{Header: raw.header, Rows: make([]Row, 0, len(raw.records))}
	for _, rec := range raw.records {
		t.Rows = append(t.Rows, rowFromRecord(raw.header, rec))
	}
	return t, nil
}

// WriteFile atomically replaces path with t.
func WriteFile(fs afero.Fs, path string, t Table) error {
	if err := checkHeader(t.Header); err != nil {
		return err
	}
	return WriteAtomic(fs, path, func(w io.Writer) error {
		return encode(w, t.Header, t.Records(), false)
	})
}

// rawTable is the physical content of a table file: records are not padded.
type rawTable struct {
	header  []string
	records [][]string
	// endsWithNewline is false when the last record is not terminated, so an append must add one first.
	endsWithNewline bool
	size            int64
}

func parse(data []byte) (rawTable, error) {
	raw := rawTable{size: int64(len(data)), endsWithNewline: len(data) == 0 || data[len(data)-1] == '\n'}
	data = bytes.TrimPrefix(data, utf8BOM)

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return raw, nil
	}
	if err != nil {
		return raw, err
	}
	if err := checkHeader(header); err != nil {
		return raw, err
	}
	raw.header = header

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return raw, err
		}
		raw.records = append(raw.records, rec)
	}
	return raw, nil
}

func checkHeader(header []string) error {
	seen := make(map[string]struct{}, len(header))
	for _, col := range header {
		if _, ok := seen[col]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateColumn, col)
		}
		seen[col] = struct{}{}
	}
	return nil
}

// encode writes the header line (unless skipHeader) and the records, each padded to the header width.
func encode(w io.Writer, header []string, records [][]string, skipHeader bool) error {
	cw := csv.NewWriter(w)
	if !skipHeader {
		if err := writeRecord(w, cw, header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	for i, rec := range records {
		if len(rec) > len(header) {
			return fmt.Errorf("%w: row %d has %d fields, header has %d", ErrRowWidth, i+1, len(rec), len(header))
		}
		if len(rec) < len(header) {
			padded := make([]string, len(header))
			copy(padded, rec)
			rec = padded
		}
		if err := writeRecord(w, cw, rec); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeRecord writes one line. csv.Writer turns a single empty field into a blank line,
// which readers skip, so that case is written as a quoted empty field.
func writeRecord(w io.Writer, cw *csv.Writer, rec []string) error {
	if len(rec) != 1 || rec[0] != "" {
		return cw.Write(rec)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\"\"\n")
	return err
}
