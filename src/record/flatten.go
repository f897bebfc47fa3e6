package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/keboola/go-utils/pkg/orderedmap"
	"github.com/spf13/cast"

	"screen-capture-extractor/src/table"
)

const summaryPrefix = "summary_"

// Flatten turns a result into rows. A Structured result gives one row per transaction,
// each led by the summary fields under a "summary_" prefix; without transactions it gives
// a single row of summary fields. Flat and Typed results give exactly one row.
func Flatten(res Result) ([]table.Row, error) {
	switch r := res.(type) {
	case Structured:
		return flattenStructured(r)
	case *Structured:
		return flattenStructured(*r)
	case Flat:
		row, err := rowFromMap(r.Fields, "")
		if err != nil {
			return nil, err
		}
		return []table.Row{row}, nil
	case *Flat:
		return Flatten(*r)
	case Typed:
		row, err := rowFromStruct(r.Value)
		if err != nil {
			return nil, err
		}
		return []table.Row{row}, nil
	case nil:
		return []table.Row{{}}, nil
	}
	return nil, fmt.Errorf("unsupported result type %T", res)
}

func flattenStructured(s Structured) ([]table.Row, error) {
	summary, err := rowFromMap(s.Summary, summaryPrefix)
	if err != nil {
		return nil, err
	}
	if len(s.Transactions) == 0 {
		return []table.Row{summary}, nil
	}

	rows := make([]table.Row, 0, len(s.Transactions))
	for i, tx := range s.Transactions {
		row := table.NewRow()
		for _, k := range summary.Keys() {
			row.Set(k, summary.Value(k))
		}
		if tx != nil {
			for _, k := range tx.Keys() {
				v, _ := tx.Get(k)
				text, err := Stringify(v)
				if err != nil {
					return nil, fmt.Errorf("transaction %d field %q: %w", i, k, err)
				}
				row.Set(k, text)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func rowFromMap(m *orderedmap.OrderedMap, prefix string) (table.Row, error) {
	var row table.Row
	if m == nil {
		return row, nil
	}
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		text, err := Stringify(v)
		if err != nil {
			return row, fmt.Errorf("field %q: %w", k, err)
		}
		row.Set(prefix+k, text)
	}
	return row, nil
}

func rowFromStruct(v any) (table.Row, error) {
	var row table.Row
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return row, nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return row, nil
	}
	if rv.Kind() != reflect.Struct {
		return row, fmt.Errorf("typed result must be a struct, got %T", v)
	}

	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		text, err := Stringify(rv.Field(i).Interface())
		if err != nil {
			return row, fmt.Errorf("field %q: %w", name, err)
		}
		row.Set(name, text)
	}
	return row, nil
}

// Stringify renders a value as a cell. nil is "", objects and arrays are compact JSON,
// scalars use their plain text form. The output for a given value never varies.
func Stringify(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case json.Number:
		return stringifyNumber(x)
	case *orderedmap.OrderedMap, orderedmap.OrderedMap, map[string]any, []any:
		var buf bytes.Buffer
		if err := writeJSON(&buf, x); err != nil {
			return "", err
		}
		return buf.String(), nil
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		var buf bytes.Buffer
		if err := writeJSON(&buf, v); err != nil {
			return "", err
		}
		return buf.String(), nil
	}
	return cast.ToStringE(v)
}

// stringifyNumber keeps integer literals digit for digit; other numbers are read as
// float64 and written like any float, so "1.50" becomes "1.5".
func stringifyNumber(n json.Number) (string, error) {
	if isIntegerLiteral(n.String()) {
		return n.String(), nil
	}
	f, err := n.Float64()
	if err != nil {
		return "", fmt.Errorf("invalid number %q: %w", n, err)
	}
	return cast.ToStringE(f)
}

func isIntegerLiteral(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// writeJSON encodes v compactly. Ordered maps keep their key order, plain maps are
// written with sorted keys, and HTML characters are left alone.
func writeJSON(buf *bytes.Buffer, v any) error {
	switch x := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case *orderedmap.OrderedMap:
		if x == nil {
			buf.WriteString("null")
			return nil
		}
		return writeObject(buf, x.Keys(), func(k string) any { v, _ := x.Get(k); return v })
	case orderedmap.OrderedMap:
		return writeJSON(buf, &x)
	case map[string]any:
		return writeObject(buf, sortedKeys(x), func(k string) any { return x[k] })
	case []any:
		buf.WriteByte('[')
		for i, item := range x {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	}
	return writeScalar(buf, v)
}

func writeObject(buf *bytes.Buffer, keys []string, get func(string) any) error {
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeScalar(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeJSON(buf, get(k)); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeScalar(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %T: %w", v, err)
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RowsJSON encodes rows as an indented JSON array of objects, columns in row order.
func RowsJSON(rows []table.Row) ([]byte, error) {
	items := make([]any, 0, len(rows))
	for _, r := range rows {
		obj := orderedmap.New()
		for _, k := range r.Keys() {
			obj.Set(k, r.Value(k))
		}
		items = append(items, obj)
	}

	var compact bytes.Buffer
	if err := writeJSON(&compact, items); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", "  "); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
