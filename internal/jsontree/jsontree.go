// Package jsontree holds helpers for generic JSON documents as produced by encoding/json:
// map[string]any, []any, string, float64, bool and nil.
package jsontree

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strconv"
)

// Clone returns a deep copy of a JSON value. Scalars are returned as is.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneObject(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Clone(e)
		}
		return out
	default:
		return v
	}
}

// CloneObject deep-copies an object. A nil object stays nil.
func CloneObject(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, e := range m {
		out[k] = Clone(e)
	}
	return out
}

// Equal reports whether two JSON values are deeply equal.
func Equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// IsComplex reports whether v is an object or an array.
func IsComplex(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

// IsEmpty reports whether v is nil, an empty object or an empty array.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}

// SortedKeys returns the keys of an object in byte order.
func SortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}

// From converts any JSON-encodable value into its generic tree form.
func From(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Into decodes a generic tree into a typed value.
func Into(tree any, target any) error {
	data, err := json.Marshal(tree)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// Normalize converts values decoded by other codecs (YAML) into JSON tree types:
// integers become float64 and map[any]any keys become strings.
func Normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Normalize(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = Normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Normalize(e)
		}
		return out
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}

// Leaf is one scalar (or empty container) found while walking a tree.
type Leaf struct {
	Path  []string
	Value any
}

// Leaves flattens v into its leaves in deterministic order. Arrays are walked like
// objects keyed by index, so every element gets its own path.
func Leaves(v any) []Leaf {
	var out []Leaf
	walk(nil, v, &out)
	return out
}

func walk(path []string, v any, out *[]Leaf) {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 0 {
			*out = append(*out, Leaf{Path: slices.Clone(path), Value: t})
			return
		}
		for _, k := range SortedKeys(t) {
			walk(append(path, k), t[k], out)
		}
	case []any:
		if len(t) == 0 {
			*out = append(*out, Leaf{Path: slices.Clone(path), Value: t})
			return
		}
		for i, e := range t {
			walk(append(path, strconv.Itoa(i)), e, out)
		}
	default:
		*out = append(*out, Leaf{Path: slices.Clone(path), Value: v})
	}
}

// Render formats a JSON value for human display: strings unquoted, numbers in
// shortest form, containers as compact JSON.
func Render(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}
