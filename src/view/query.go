// Package view selects, filters and sorts a loaded capture table for display and export.
// Problems with a query never fail it: the offending step is skipped and a warning is
// returned instead.
package view

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/relvacode/iso8601"
	"github.com/spf13/cast"
	goValuate "gopkg.in/Knetic/govaluate.v3"

	"screen-capture-extractor/src/table"
)

type SortMode string

const (
	SortAlpha   SortMode = "alpha"
	SortNumeric SortMode = "numeric"
	SortDate    SortMode = "date"
)

// Query is applied in order: projection, filter, sort.
type Query struct {
	// Columns to keep, in this order. Empty keeps all.
	Columns []string
	// Where is a boolean expression over column names, e.g. `follower_count > 1000`.
	// Names that are not identifiers are written in brackets: `[posts count] > 3`.
	Where    string
	SortBy   string
	Desc     bool
	SortMode SortMode
}

type Result struct {
	Table    table.Table
	Warnings []string
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ParseColumns splits a comma separated column list, dropping blanks.
func ParseColumns(s string) []string {
	var out []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Apply runs q against t. t is not modified.
func Apply(t table.Table, q Query) Result {
	res := Result{Table: t}
	res.Table = project(&res, res.Table, q.Columns)
	res.Table = filter(&res, res.Table, q.Where)
	res.Table = sortRows(&res, res.Table, q.SortBy, q.SortMode, q.Desc)
	return res
}

func project(res *Result, t table.Table, columns []string) table.Table {
	if len(columns) == 0 {
		return t
	}
	var present, missing []string
	for _, c := range columns {
		if _, ok := t.Index(c); !ok {
			missing = append(missing, c)
			continue
		}
		if !slices.Contains(present, c) {
			present = append(present, c)
		}
	}
	if len(missing) > 0 {
		res.warnf("missing columns ignored: %s", strings.Join(missing, ", "))
	}
	if len(present) == 0 {
		return t
	}

	out := table.Table{Header: present, Rows: make([]table.Row, len(t.Rows))}
	for i, r := range t.Rows {
		var row table.Row
		for _, c := range present {
			if v, ok := r.Get(c); ok {
				row.Set(c, v)
			}
		}
		out.Rows[i] = row
	}
	return out
}

func filter(res *Result, t table.Table, where string) table.Table {
	if strings.TrimSpace(where) == "" {
		return t
	}
	expr, err := goValuate.NewEvaluableExpressionWithFunctions(where, functions)
	if err != nil {
		res.warnf("invalid filter expression, returning unfiltered data: %v", err)
		return t
	}

	out := table.Table{Header: t.Header}
	for i, r := range t.Rows {
		v, err := expr.Evaluate(parameters(t.Header, r))
		if err != nil {
			res.warnf("filter failed on row %d, returning unfiltered data: %v", i+1, err)
			return t
		}
		keep, ok := v.(bool)
		if !ok {
			res.warnf("filter expression returned %T, not a boolean; returning unfiltered data", v)
			return t
		}
		if keep {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// parameters exposes every header column; numeric text becomes a number so comparisons
// like `count > 10` work.
func parameters(header []string, r table.Row) map[string]any {
	params := make(map[string]any, len(header))
	for _, c := range header {
		v := r.Value(c)
		if f, ok := parseNumber(v); ok {
			params[c] = f
		} else {
			params[c] = v
		}
	}
	return params
}

var functions = map[string]goValuate.ExpressionFunction{
	"lower": func(args ...any) (any, error) {
		s, err := oneString("lower", args)
		return strings.ToLower(s), err
	},
	"upper": func(args ...any) (any, error) {
		s, err := oneString("upper", args)
		return strings.ToUpper(s), err
	},
	"len": func(args ...any) (any, error) {
		s, err := oneString("len", args)
		return float64(len([]rune(s))), err
	},
	"contains": func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("contains expects 2 arguments, got %d", len(args))
		}
		return strings.Contains(cast.ToString(args[0]), cast.ToString(args[1])), nil
	},
	"num": func(args ...any) (any, error) {
		s, err := oneString("num", args)
		if err != nil {
			return nil, err
		}
		f, ok := parseNumber(s)
		if !ok {
			return nil, fmt.Errorf("num: %q is not a number", s)
		}
		return f, nil
	},
}

func oneString(name string, args []any) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%s expects 1 argument, got %d", name, len(args))
	}
	return cast.ToStringE(args[0])
}

func sortRows(res *Result, t table.Table, column string, mode SortMode, desc bool) table.Table {
	if column == "" {
		return t
	}
	if _, ok := t.Index(column); !ok {
		res.warnf("sort column %q not found; skipping sort", column)
		return t
	}
	if mode == "" {
		mode = SortAlpha
	}
	switch mode {
	case SortAlpha, SortNumeric, SortDate:
	default:
		res.warnf("unsupported sort mode %q; skipping sort", mode)
		return t
	}

	type keyed struct {
		row  table.Row
		text string
		num  float64
		when time.Time
		ok   bool
	}
	rows := make([]keyed, len(t.Rows))
	for i, r := range t.Rows {
		k := keyed{row: r, text: r.Value(column)}
		switch mode {
		case SortAlpha:
			k.ok = true
		case SortNumeric:
			k.num, k.ok = parseNumber(k.text)
		case SortDate:
			k.when, k.ok = parseDate(k.text)
		}
		rows[i] = k
	}

	// Values that do not parse go last in either direction.
	slices.SortStableFunc(rows, func(a, b keyed) int {
		if a.ok != b.ok {
			if a.ok {
				return -1
			}
			return 1
		}
		if !a.ok {
			return 0
		}
		var c int
		switch mode {
		case SortNumeric:
			c = cmpFloat(a.num, b.num)
		case SortDate:
			c = a.when.Compare(b.when)
		default:
			c = strings.Compare(a.text, b.text)
		}
		if desc {
			return -c
		}
		return c
	})

	out := table.Table{Header: t.Header, Rows: make([]table.Row, len(rows))}
	for i, k := range rows {
		out.Rows[i] = k.row
	}
	return out
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// parseNumber accepts plain numbers and thousands separators ("1,200").
func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	f, err := cast.ToFloat64E(s)
	if err != nil {
		return 0, false
	}
	return f, true
}

var extraDateLayouts = []string{
	"2006-01-02 15:04",
	"02/01/2006 15:04",
	"02/01/2006",
	"01/02/2006",
	"02.01.2006",
	"2 Jan 2006",
}

// parseDate tries ISO 8601 first, then the layouts cast knows and a few day-first ones.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := iso8601.ParseString(s); err == nil {
		return t, true
	}
	if t, err := cast.ToTimeE(s); err == nil {
		return t, true
	}
	for _, layout := range extraDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseSortMode accepts the mode names and "alphabetical".
func ParseSortMode(s string) (SortMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "alpha", "alphabetical":
		return SortAlpha, nil
	case "numeric", "number":
		return SortNumeric, nil
	case "date":
		return SortDate, nil
	}
	return "", fmt.Errorf("unknown sort mode %q (expected alpha, numeric or date)", s)
}
