package record

import (
	"encoding/json"
	"testing"

	"github.com/keboola/go-utils/pkg/orderedmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-capture-extractor/src/table"
)

func flatten(t *testing.T, text string) []table.Row {
	t.Helper()
	rows, err := Flatten(Parse(text))
	require.NoError(t, err)
	return rows
}

func TestFlattenStructured(t *testing.T) {
	rows := flatten(t, `{"summary": {"a": "1"}, "transactions": [{"b": "2"}, {"b": "3"}]}`)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Equal(table.NewRow("summary_a", "1", "b", "2")))
	assert.True(t, rows[1].Equal(table.NewRow("summary_a", "1", "b", "3")))
}

func TestFlattenEmptyTransactions(t *testing.T) {
	for _, text := range []string{
		`{"summary": {"a": "1"}, "transactions": []}`,
		`{"summary": {"a": "1"}, "transactions": null}`,
	} {
		rows := flatten(t, text)
		require.Len(t, rows, 1, text)
		assert.True(t, rows[0].Equal(table.NewRow("summary_a", "1")), text)
	}
}

func TestFlattenFlatKeepsOrder(t *testing.T) {
	rows := flatten(t, `{"zeta": "z", "alpha": 2, "mid": true, "none": null}`)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"zeta", "alpha", "mid", "none"}, rows[0].Keys())
	assert.True(t, rows[0].Equal(table.NewRow("zeta", "z", "alpha", "2", "mid", "true", "none", "")))
}

func TestFlattenNestedValuesAsJSON(t *testing.T) {
	rows := flatten(t, `{"tags": ["a", "<b>"], "meta": {"y": 1, "x": {"k": 2.5}}}`)
	require.Len(t, rows, 1)
	assert.Equal(t, `["a","<b>"]`, rows[0].Value("tags"))
	assert.Equal(t, `{"y":1,"x":{"k":2.5}}`, rows[0].Value("meta"))
}

func TestFlattenTransactionKeyCollision(t *testing.T) {
	rows := flatten(t, `{"summary": {"a": "s"}, "transactions": [{"summary_a": "t", "b": "1"}]}`)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"summary_a", "b"}, rows[0].Keys())
	assert.Equal(t, "t", rows[0].Value("summary_a"))
}

func TestFlattenTyped(t *testing.T) {
	rows, err := Flatten(Typed{Value: &Profile{UserName: "ann", PostsCount: "12"}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"user_name", "follower_count", "following_count", "posts_count", "summary"}, rows[0].Keys())
	assert.Equal(t, "ann", rows[0].Value("user_name"))
	assert.Equal(t, "12", rows[0].Value("posts_count"))

	_, err = Flatten(Typed{Value: 42})
	assert.Error(t, err)
}

func TestFlattenTypedSkipsIgnoredFields(t *testing.T) {
	type sample struct {
		Name    string `json:"name,omitempty"`
		Skip    string `json:"-"`
		Count   int
		private string
	}
	rows, err := Flatten(Typed{Value: sample{Name: "x", Skip: "y", Count: 3, private: "z"}})
	require.NoError(t, err)
	assert.True(t, rows[0].Equal(table.NewRow("name", "x", "Count", "3")))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		structured bool
	}{
		{"both keys", `{"summary": {}, "transactions": []}`, true},
		{"null summary", `{"summary": null, "transactions": [{"a": 1}]}`, true},
		{"missing transactions", `{"summary": {"a": 1}}`, false},
		{"missing summary", `{"transactions": []}`, false},
		{"summary is text", `{"summary": "nice", "transactions": []}`, false},
		{"transactions is object", `{"summary": {}, "transactions": {"a": 1}}`, false},
		{"transaction is scalar", `{"summary": {}, "transactions": [1]}`, false},
		{"transaction is null", `{"summary": {}, "transactions": [null]}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(tt.text)
			_, ok := res.(Structured)
			assert.Equal(t, tt.structured, ok)
		})
	}
}

func TestClassifyFallsBackToFlatWithAllFields(t *testing.T) {
	rows := flatten(t, `{"summary": "nice", "transactions": []}`)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Equal(table.NewRow("summary", "nice", "transactions", "[]")))
}

func TestParseLenient(t *testing.T) {
	tests := []struct {
		name string
		text string
		want table.Row
	}{
		{"plain", `{"a": "1"}`, table.NewRow("a", "1")},
		{"fenced", "```json\n{\"a\": \"1\"}\n```", table.NewRow("a", "1")},
		{"chatty", `Sure! Here it is: {"a": {"b": 2}} hope that helps`, table.NewRow("a", `{"b":2}`)},
		{"garbage", "no json here", table.Row{}},
		{"broken braces", "} {", table.Row{}},
		{"invalid inside braces", "{a: 1}", table.Row{}},
		{"array", `[{"a": "1"}]`, table.Row{}},
		{"scalar", `42`, table.Row{}},
		{"empty", "", table.Row{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := flatten(t, tt.text)
			require.Len(t, rows, 1)
			assert.True(t, tt.want.Equal(rows[0]), "got keys %v", rows[0].Keys())
		})
	}
}

func TestParseKeepsNumberText(t *testing.T) {
	rows := flatten(t, `{"id": 12345678901234567891, "price": 1.50, "qty": 3, "neg": -7, "big": 1e21, "nested": {"n": 98765432109876543210}, "list": [12345678901234567891, 2.0]}`)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "12345678901234567891", row.Value("id"))
	assert.Equal(t, "1.5", row.Value("price"))
	assert.Equal(t, "3", row.Value("qty"))
	assert.Equal(t, "-7", row.Value("neg"))
	assert.Equal(t, "1000000000000000000000", row.Value("big"))
	assert.Equal(t, `{"n":98765432109876543210}`, row.Value("nested"))
	assert.Equal(t, `[12345678901234567891,2.0]`, row.Value("list"))
	assert.Equal(t, []string{"id", "price", "qty", "neg", "big", "nested", "list"}, row.Keys())

	res, err := Decode(`{"follower_count": 12345678901234567891, "posts_count": 1.50}`, ModeProfile)
	require.NoError(t, err)
	p := res.(Typed).Value.(Profile)
	assert.Equal(t, "12345678901234567891", p.FollowerCount)
	assert.Equal(t, "1.5", p.PostsCount)
}

func TestDecodeProfile(t *testing.T) {
	res, err := Decode(`{"user_name": "ann", "follower_count": 1200, "posts_count": true, "summary": {"k": "v"}, "extra": 1}`, ModeProfile)
	require.NoError(t, err)
	typed, ok := res.(Typed)
	require.True(t, ok)
	p := typed.Value.(Profile)
	assert.Equal(t, "ann", p.UserName)
	assert.Equal(t, "1200", p.FollowerCount)
	assert.Equal(t, "", p.FollowingCount)
	assert.Equal(t, "true", p.PostsCount)
	assert.Equal(t, `{"k":"v"}`, p.Summary)

	res, err = Decode("model refused", ModeProfile)
	require.NoError(t, err)
	rows, err := Flatten(res)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 5, rows[0].Len())
}

func TestDecodeAuto(t *testing.T) {
	res, err := Decode(`{"a": 1}`, ModeAuto)
	require.NoError(t, err)
	assert.IsType(t, Flat{}, res)

	_, err = Decode(`{}`, Mode("weird"))
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Profile ")
	require.NoError(t, err)
	assert.Equal(t, ModeProfile, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeAuto, m)

	_, err = ParseMode("csv")
	assert.Error(t, err)
}

func TestStringify(t *testing.T) {
	om := orderedmap.New()
	om.Set("b", 1)
	om.Set("a", "x&y")

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "hi", "hi"},
		{"integer float", float64(10), "10"},
		{"fraction", 2.50, "2.5"},
		{"large", float64(1e21), "1000000000000000000000"},
		{"int", 7, "7"},
		{"bool", false, "false"},
		{"number literal", json.Number("12345678901234567891"), "12345678901234567891"},
		{"number fraction", json.Number("1.50"), "1.5"},
		{"number exponent", json.Number("1.0e3"), "1000"},
		{"ordered map", om, `{"b":1,"a":"x&y"}`},
		{"plain map sorted", map[string]any{"b": 1, "a": nil}, `{"a":null,"b":1}`},
		{"slice", []any{"a", 1.5, nil}, `["a",1.5,null]`},
		{"typed slice", []string{"x"}, `["x"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Stringify(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := Stringify(tt.in)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestStringifyError(t *testing.T) {
	_, err := Stringify(make(chan int))
	assert.Error(t, err)
}

func TestRowsJSON(t *testing.T) {
	data, err := RowsJSON([]table.Row{table.NewRow("z", "1", "a", "<2>")})
	require.NoError(t, err)
	assert.Equal(t, "[\n  {\n    \"z\": \"1\",\n    \"a\": \"<2>\"\n  }\n]", string(data))
}
