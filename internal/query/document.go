package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Document is a single record flowing through a pipeline. Nested objects are
// Documents and lists are []any.
type Document map[string]any

// Get resolves a dotted path. Numeric segments index into lists.
func (d Document) Get(path string) (any, bool) {
	if d == nil || path == "" {
		return nil, false
	}
	var cur any = d
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case Document:
			v, ok := node[part]
			if !ok {
				return nil, false
			}
			cur = v
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Set assigns v at the dotted path, creating intermediate documents as needed.
func (d Document) Set(path string, v any) {
	parts := strings.Split(path, ".")
	node := d
	for _, part := range parts[:len(parts)-1] {
		next, ok := node[part].(Document)
		if !ok {
			if m, isMap := node[part].(map[string]any); isMap {
				next = Document(m)
			} else {
				next = Document{}
			}
			node[part] = next
		}
		node = next
	}
	node[parts[len(parts)-1]] = v
}

// Delete removes the value at the dotted path if present.
func (d Document) Delete(path string) {
	parts := strings.Split(path, ".")
	node := d
	for _, part := range parts[:len(parts)-1] {
		next, ok := node[part].(Document)
		if !ok {
			return
		}
		node = next
	}
	delete(node, parts[len(parts)-1])
}

// Clone returns a deep copy of nested documents and lists. Leaf values are shared.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case Document:
		return val.Clone()
	case map[string]any:
		return Document(val).Clone()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// asList normalises list-valued fields. Missing and nil values yield an empty list.
func asList(v any) ([]any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, true
	case []any:
		return val, true
	case []Document:
		out := make([]any, len(val))
		for i, doc := range val {
			out[i] = doc
		}
		return out, true
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// keyOf renders a scalar as a join key.
func keyOf(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, val != ""
	case fmt.Stringer:
		return val.String(), true
	case int, int32, int64, float64, bool:
		return fmt.Sprint(val), true
	default:
		return "", false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

// addNumbers sums two numeric values, staying integral while both inputs are integral.
func addNumbers(a, b any) any {
	ai, aInt := toInt(a)
	bi, bInt := toInt(b)
	if aInt && bInt {
		return ai + bi
	}
	af, _ := toFloat(a)
	bf, _ := toFloat(b)
	return af + bf
}

// compareValues orders nil before everything else, then numbers, strings, booleans and times
// by their natural order. Values of unrelated types compare by their printed form.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return compareValues(a, b) == 0
}
