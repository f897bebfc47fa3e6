package view

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"screen-capture-extractor/src/table"
)

const maxCellWidth = 60

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	headerColor  = color.New(color.Bold)
	warnColor    = color.New(color.FgYellow)
)

// Summary describes a table before any query is applied.
type Summary struct {
	Columns []string
	Rows    int
	// Empty counts blank cells per column, in header order.
	Empty []int
}

func Summarize(t table.Table) Summary {
	s := Summary{Columns: t.Header, Rows: len(t.Rows), Empty: make([]int, len(t.Header))}
	for _, r := range t.Rows {
		for i, c := range t.Header {
			if strings.TrimSpace(r.Value(c)) == "" {
				s.Empty[i]++
			}
		}
	}
	return s
}

func (s Summary) Write(w io.Writer) error {
	var b strings.Builder
	b.WriteString(headingColor.Sprint("=== Columns ===") + "\n")
	for _, c := range s.Columns {
		fmt.Fprintf(&b, "  %s\n", c)
	}
	fmt.Fprintf(&b, "\n%s\n  %d\n", headingColor.Sprint("=== Row count ==="), s.Rows)
	b.WriteString("\n" + headingColor.Sprint("=== Empty values per column ===") + "\n")
	for i, c := range s.Columns {
		fmt.Fprintf(&b, "  %s: %d\n", c, s.Empty[i])
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteWarnings prints one line per warning.
func WriteWarnings(w io.Writer, warnings []string) error {
	for _, msg := range warnings {
		if _, err := fmt.Fprintln(w, warnColor.Sprint("warning: "+msg)); err != nil {
			return err
		}
	}
	return nil
}

// Render writes the first head rows of t as an aligned text table. head <= 0 writes all
// rows.
func Render(w io.Writer, t table.Table, head int) error {
	if len(t.Header) == 0 {
		_, err := fmt.Fprintln(w, "(no columns)")
		return err
	}
	rows := t.Rows
	if head > 0 && len(rows) > head {
		rows = rows[:head]
	}

	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(cells(t.Header), "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(cells(r.Render(t.Header)), "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	// Color is applied after alignment; escape codes would otherwise count as width.
	sc := bufio.NewScanner(&buf)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	first := true
	var out strings.Builder
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " ")
		if first {
			line = headerColor.Sprint(line)
			first = false
		}
		out.WriteString(line + "\n")
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if len(rows) < len(t.Rows) {
		fmt.Fprintf(&out, "... %d more row(s)\n", len(t.Rows)-len(rows))
	}
	_, err := io.WriteString(w, out.String())
	return err
}

// cells flattens line breaks and shortens long values so each row stays on one line.
func cells(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		v = strings.Join(strings.Fields(v), " ")
		if r := []rune(v); len(r) > maxCellWidth {
			v = string(r[:maxCellWidth-3]) + "..."
		}
		out[i] = v
	}
	return out
}
