package ir

import (
	"sort"
	"strings"
	"unicode/utf16"
)

// Doc is a document: a filter selector, a group or projection spec, or a
// result record.
type Doc map[string]any

// Clone returns a deep copy of d. Nested maps and slices are copied; scalar
// leaves are shared.
func (d Doc) Clone() Doc {
	if d == nil {
		return nil
	}
	out := make(Doc, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code unit comparison).
func (d Doc) SortedKeys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return compareKeysRFC8785(keys[i], keys[j]) < 0
	})
	return keys
}

// Lookup resolves a dotted path ("customer.email") through nested documents.
func (d Doc) Lookup(path string) (any, bool) {
	var cur any = d
	for _, part := range strings.Split(path, ".") {
		m, ok := AsDoc(cur)
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// AsDoc reports whether v is a document, accepting both Doc and the
// map[string]any produced by decoders.
func AsDoc(v any) (Doc, bool) {
	switch m := v.(type) {
	case Doc:
		return m, true
	case map[string]any:
		return Doc(m), true
	default:
		return nil, false
	}
}

// DeepMerge returns a fresh document holding a's keys overlaid by b's.
// Where both sides hold a document under the same key the two are merged
// recursively; otherwise b's value wins. Neither input is modified.
func DeepMerge(a, b Doc) Doc {
	if a == nil && b == nil {
		return nil
	}
	out := a.Clone()
	if out == nil {
		out = make(Doc, len(b))
	}
	for k, bv := range b {
		if av, ok := out[k]; ok {
			am, aIsDoc := AsDoc(av)
			bm, bIsDoc := AsDoc(bv)
			if aIsDoc && bIsDoc {
				out[k] = DeepMerge(am, bm)
				continue
			}
		}
		out[k] = cloneValue(bv)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case Doc:
		return val.Clone()
	case map[string]any:
		return Doc(val).Clone()
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	case Sort:
		return val.Clone()
	default:
		return v
	}
}

// compareKeysRFC8785 compares two strings by UTF-16 code units.
// Must use unicode/utf16.Encode for correct surrogate handling.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}
