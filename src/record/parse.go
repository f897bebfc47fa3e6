package record

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/keboola/go-utils/pkg/orderedmap"
	"github.com/mitchellh/mapstructure"
)

// Parse reads model output leniently. The whole text is tried as JSON first, then the
// span from the first '{' to the last '}'. Anything that does not yield a JSON object,
// including valid JSON arrays and scalars, gives an empty Flat.
func Parse(text string) Result {
	obj, ok := parseObject(text)
	if !ok {
		return EmptyFlat()
	}
	return Classify(obj)
}

func parseObject(text string) (*orderedmap.OrderedMap, bool) {
	trimmed := strings.TrimSpace(text)
	if json.Valid([]byte(trimmed)) {
		return unmarshalObject(trimmed)
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, false
	}
	return unmarshalObject(text[start : end+1])
}

func unmarshalObject(text string) (*orderedmap.OrderedMap, bool) {
	if !strings.HasPrefix(text, "{") {
		return nil, false
	}
	obj := orderedmap.New()
	if err := json.Unmarshal([]byte(text), obj); err != nil {
		return nil, false
	}

	// orderedmap decodes numbers as float64; take the literals from a second pass.
	var literals map[string]any
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	if err := dec.Decode(&literals); err != nil {
		return nil, false
	}
	withNumbers(obj, literals)
	return obj, true
}

// withNumbers replaces the float64 values in v by the json.Number found at the same place
// in lit, so integers beyond float64 precision keep all their digits.
func withNumbers(v, lit any) any {
	switch x := v.(type) {
	case *orderedmap.OrderedMap:
		m, ok := lit.(map[string]any)
		if !ok || x == nil {
			return v
		}
		for _, k := range x.Keys() {
			val, _ := x.Get(k)
			x.Set(k, withNumbers(val, m[k]))
		}
	case []any:
		l, ok := lit.([]any)
		if !ok || len(l) != len(x) {
			return v
		}
		for i := range x {
			x[i] = withNumbers(x[i], l[i])
		}
	case float64:
		if n, ok := lit.(json.Number); ok {
			return n
		}
	}
	return v
}

// Classify picks the variant for a decoded object. It is Structured only when both
// "summary" and "transactions" are present, summary is an object (or null) and
// transactions is an array (or null) of objects. Everything else is Flat.
func Classify(obj *orderedmap.OrderedMap) Result {
	if obj == nil {
		return EmptyFlat()
	}

	rawSummary, hasSummary := obj.Get("summary")
	rawTxs, hasTxs := obj.Get("transactions")
	if !hasSummary || !hasTxs {
		return Flat{Fields: obj}
	}

	summary, ok := asObject(rawSummary)
	if !ok {
		return Flat{Fields: obj}
	}

	var txs []*orderedmap.OrderedMap
	switch v := rawTxs.(type) {
	case nil:
	case []any:
		txs = make([]*orderedmap.OrderedMap, 0, len(v))
		for _, item := range v {
			tx, ok := asObject(item)
			if !ok || tx == nil {
				return Flat{Fields: obj}
			}
			txs = append(txs, tx)
		}
	default:
		return Flat{Fields: obj}
	}

	if summary == nil {
		summary = orderedmap.New()
	}
	return Structured{Summary: summary, Transactions: txs}
}

// asObject accepts the shapes a JSON object can take after decoding. A null is an
// object without fields.
func asObject(v any) (*orderedmap.OrderedMap, bool) {
	switch m := v.(type) {
	case nil:
		return nil, true
	case *orderedmap.OrderedMap:
		return m, true
	case orderedmap.OrderedMap:
		return &m, true
	case map[string]any:
		out := orderedmap.New()
		for _, k := range sortedKeys(m) {
			out.Set(k, m[k])
		}
		return out, true
	}
	return nil, false
}

// Decode parses model text according to mode.
func Decode(text string, mode Mode) (Result, error) {
	switch mode {
	case "", ModeAuto:
		return Parse(text), nil
	case ModeProfile:
		var p Profile
		obj, ok := parseObject(text)
		if !ok {
			return Typed{Value: p}, nil
		}
		if err := decodeProfile(obj.ToMap(), &p); err != nil {
			return nil, err
		}
		return Typed{Value: p}, nil
	}
	return nil, fmt.Errorf("unknown result mode %q", mode)
}

func decodeProfile(input map[string]any, p *Profile) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           p,
		DecodeHook:       stringifyHook,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(input); err != nil {
		return fmt.Errorf("failed to decode profile: %w", err)
	}
	return nil
}

// stringifyHook renders any value headed for a string field with Stringify, so objects
// become JSON text and booleans read "true"/"false".
func stringifyHook(from, to reflect.Value) (any, error) {
	if !from.IsValid() {
		return nil, nil
	}
	if n, ok := from.Interface().(json.Number); ok && to.Kind() == reflect.String {
		return Stringify(n)
	}
	if to.Kind() != reflect.String || from.Kind() == reflect.String {
		return from.Interface(), nil
	}
	return Stringify(from.Interface())
}
