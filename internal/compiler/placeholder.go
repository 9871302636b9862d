package compiler

import (
	"fmt"
	"math"
	"strconv"

	"github.com/phantien133/active-aggregate/internal/ir"
)

// placeholderIndex returns N for a string that is exactly "$N" with N >= 1.
func placeholderIndex(v any) (int, bool) {
	s, ok := v.(string)
	if !ok || len(s) < 2 || s[0] != '$' {
		return 0, false
	}
	for _, c := range s[1:] {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// substitute returns a copy of v with placeholders replaced by args.
// Nested maps come back as ir.Doc.
func substitute(v any, args []any) (any, error) {
	if n, ok := placeholderIndex(v); ok {
		if n > len(args) {
			return nil, fmt.Errorf("placeholder $%d: only %d argument(s) given", n, len(args))
		}
		return args[n-1], nil
	}
	switch val := v.(type) {
	case ir.Doc:
		return substituteDoc(val, args)
	case map[string]any:
		return substituteDoc(val, args)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			s, err := substitute(elem, args)
			if err != nil {
				return nil, err
			}
			out[i] = s
		}
		return out, nil
	default:
		return v, nil
	}
}

func substituteDoc(m map[string]any, args []any) (ir.Doc, error) {
	if m == nil {
		return nil, nil
	}
	out := make(ir.Doc, len(m))
	for k, v := range m {
		s, err := substitute(v, args)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = s
	}
	return out, nil
}

// maxPlaceholder returns the highest placeholder index used anywhere in v.
func maxPlaceholder(v any) int {
	if n, ok := placeholderIndex(v); ok {
		return n
	}
	highest := 0
	switch val := v.(type) {
	case ir.Doc:
		for _, elem := range val {
			highest = max(highest, maxPlaceholder(elem))
		}
	case map[string]any:
		for _, elem := range val {
			highest = max(highest, maxPlaceholder(elem))
		}
	case []any:
		for _, elem := range val {
			highest = max(highest, maxPlaceholder(elem))
		}
	}
	return highest
}

// placeholders returns the highest placeholder index used by the scope.
func (s *ScopeSpec) placeholders() int {
	highest := max(maxPlaceholder(s.Match), maxPlaceholder(s.Group), maxPlaceholder(s.Project), maxPlaceholder(s.Limit))
	for _, stage := range s.Pipeline {
		highest = max(highest, maxPlaceholder(stage))
	}
	for _, u := range s.Uses {
		highest = max(highest, maxPlaceholder(u.Args))
	}
	return highest
}

// Params is the declared arity or, when undeclared, the placeholder count.
func (s *ScopeSpec) Params() int {
	if s.Arity > 0 {
		return s.Arity
	}
	return s.placeholders()
}

// toLimit converts a decoded limit to int64.
func toLimit(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("limit %d overflows", n)
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("limit %v is not an integer", n)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("limit must be an integer, got %T", v)
	}
}
