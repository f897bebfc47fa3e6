package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRowSetKeepsPosition(t *testing.T) {
	r := NewRow("a", "1", "b", "2")
	r.Set("a", "3")
	r.Set("c", "4")

	assert.Equal(t, []string{"a", "b", "c"}, r.Keys())
	assert.Equal(t, "3", r.Value("a"))
	assert.Equal(t, 3, r.Len())
}

func TestRowZeroValue(t *testing.T) {
	var r Row
	_, ok := r.Get("x")
	assert.False(t, ok)
	assert.Equal(t, "", r.Value("x"))
	assert.Empty(t, r.Keys())

	r.Set("x", "1")
	assert.Equal(t, []string{"x"}, r.Keys())
}

func TestRowTrailingKey(t *testing.T) {
	r := NewRow("a", "1", "b")
	v, ok := r.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "", v)
}

func TestRowEqual(t *testing.T) {
	assert.True(t, NewRow("a", "1", "b", "2").Equal(NewRow("a", "1", "b", "2")))
	assert.False(t, NewRow("a", "1", "b", "2").Equal(NewRow("b", "2", "a", "1")), "order matters")
	assert.False(t, NewRow("a", "1").Equal(NewRow("a", "2")))
	assert.True(t, Row{}.Equal(NewRow()))
}

func TestRowRender(t *testing.T) {
	r := NewRow("b", "2", "extra", "x")
	assert.Equal(t, []string{"", "2"}, r.Render([]string{"a", "b"}))
}
