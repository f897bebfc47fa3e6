package table

// Row is an ordered set of column/value pairs. The zero value is an empty row ready to use.
type Row struct {
	keys   []string
	values map[string]string
}

// NewRow builds a row from alternating key/value arguments.
// A trailing key without a value is stored with an empty value.
func NewRow(kv ...string) Row {
	var r Row
	for i := 0; i < len(kv); i += 2 {
		v := ""
		if i+1 < len(kv) {
			v = kv[i+1]
		}
		r.Set(kv[i], v)
	}
	return r
}

// Set stores value under key. An existing key keeps its position.
func (r *Row) Set(key, value string) {
	if r.values == nil {
		r.values = make(map[string]string)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

func (r Row) Get(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Value returns the value of key, or "" when the row has no such column.
func (r Row) Value(key string) string {
	return r.values[key]
}

// Keys returns column names in insertion order.
func (r Row) Keys() []string {
	return append([]string(nil), r.keys...)
}

func (r Row) Len() int { return len(r.keys) }

// Render lays the row out against header. Missing columns become "".
func (r Row) Render(header []string) []string {
	out := make([]string, len(header))
	for i, col := range header {
		out[i] = r.values[col]
	}
	return out
}

// Equal reports whether both rows hold the same keys, in the same order, with the same values.
func (r Row) Equal(other Row) bool {
	if len(r.keys) != len(other.keys) {
		return false
	}
	for i, k := range r.keys {
		if other.keys[i] != k || other.values[k] != r.values[k] {
			return false
		}
	}
	return true
}

// rowFromRecord maps a physical CSV record onto header. Short records are padded with "",
// fields beyond the header are dropped.
func rowFromRecord(header, record []string) Row {
	r := Row{
		keys:   append([]string(nil), header...),
		values: make(map[string]string, len(header)),
	}
	for i, col := range header {
		if i < len(record) {
			r.values[col] = record[i]
		} else {
			r.values[col] = ""
		}
	}
	return r
}
