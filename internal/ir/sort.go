package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Direction is a sort direction as understood by the store.
type Direction int

const (
	Asc  Direction = 1
	Desc Direction = -1
)

// SortKey is one field of a sort specification.
type SortKey struct {
	Field string
	Dir   Direction
}

// Sort is an ordered sort specification. Order is significant: the first
// key is the primary sort key.
type Sort []SortKey

// By builds a single-key sort.
func By(field string, dir Direction) Sort {
	return Sort{{Field: field, Dir: dir}}
}

// Then appends a secondary key.
func (s Sort) Then(field string, dir Direction) Sort {
	out := s.Clone()
	return append(out, SortKey{Field: field, Dir: dir})
}

// ParseSort parses "field" (ascending) and "-field" (descending) terms.
func ParseSort(terms ...string) (Sort, error) {
	out := make(Sort, 0, len(terms))
	seen := make(map[string]bool, len(terms))
	for _, term := range terms {
		dir := Asc
		field := strings.TrimSpace(term)
		switch {
		case strings.HasPrefix(field, "-"):
			dir = Desc
			field = field[1:]
		case strings.HasPrefix(field, "+"):
			field = field[1:]
		}
		if field == "" {
			return nil, fmt.Errorf("sort term %q: empty field", term)
		}
		if seen[field] {
			return nil, fmt.Errorf("sort term %q: duplicate field", term)
		}
		seen[field] = true
		out = append(out, SortKey{Field: field, Dir: dir})
	}
	return out, nil
}

// Clone returns a copy of s.
func (s Sort) Clone() Sort {
	if s == nil {
		return nil
	}
	out := make(Sort, len(s))
	copy(out, s)
	return out
}

// IsZero reports whether the sort has no keys.
func (s Sort) IsZero() bool { return len(s) == 0 }

// Terms renders s back into ParseSort form.
func (s Sort) Terms() []string {
	out := make([]string, len(s))
	for i, k := range s {
		if k.Dir == Desc {
			out[i] = "-" + k.Field
		} else {
			out[i] = k.Field
		}
	}
	return out
}

// MarshalJSON renders s as an object with keys in sort order.
func (s Sort) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k.Field)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		fmt.Fprintf(&buf, ":%d", k.Dir)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
