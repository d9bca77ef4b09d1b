package jsontree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneIsDeep(t *testing.T) {
	src := map[string]any{
		"filters": map[string]any{"f1": map[string]any{"type": "Gain"}},
		"names":   []any{"a", "b"},
	}

	dst := Clone(src).(map[string]any)
	dst["filters"].(map[string]any)["f1"].(map[string]any)["type"] = "Delay"
	dst["names"].([]any)[0] = "z"

	assert.Equal(t, "Gain", src["filters"].(map[string]any)["f1"].(map[string]any)["type"])
	assert.Equal(t, "a", src["names"].([]any)[0])
}

func TestNormalizeYAMLTypes(t *testing.T) {
	in := map[string]any{
		"channels": 2,
		"nested":   map[any]any{"in": 2, 3: "x"},
		"list":     []any{int64(1), float32(0.5)},
	}

	out := Normalize(in)
	assert.Equal(t, map[string]any{
		"channels": 2.0,
		"nested":   map[string]any{"in": 2.0, "3": "x"},
		"list":     []any{1.0, 0.5},
	}, out)
}

func TestLeavesTreatsArraysAsKeyedObjects(t *testing.T) {
	leaves := Leaves(map[string]any{
		"b": []any{"x", map[string]any{"c": 1.0}},
		"a": map[string]any{},
	})

	require.Len(t, leaves, 3)
	assert.Equal(t, []string{"a"}, leaves[0].Path)
	assert.Equal(t, []string{"b", "0"}, leaves[1].Path)
	assert.Equal(t, []string{"b", "1", "c"}, leaves[2].Path)
}

func TestRender(t *testing.T) {
	assert.Equal(t, "null", Render(nil))
	assert.Equal(t, "Lowpass", Render("Lowpass"))
	assert.Equal(t, "0.707", Render(0.707))
	assert.Equal(t, "1000", Render(1000.0))
	assert.Equal(t, "true", Render(true))
	assert.Equal(t, `["a",1]`, Render([]any{"a", 1.0}))
}

func TestFromAndInto(t *testing.T) {
	type sample struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	tree, err := From(sample{Name: "m", Count: 2})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "m", "count": 2.0}, tree)

	var back sample
	require.NoError(t, Into(tree, &back))
	assert.Equal(t, sample{Name: "m", Count: 2}, back)
}
