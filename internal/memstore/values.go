package memstore

import (
	"reflect"
	"strings"
	"time"

	"github.com/phantien133/active-aggregate/internal/ir"
)

// toFloat converts any numeric value.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func isInteger(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint32, uint64:
		return true
	default:
		return false
	}
}

// toInt64 accepts integers and integral floats.
func toInt64(v any) (int64, bool) {
	f, ok := toFloat(v)
	if !ok || f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}

// compareValues orders two values of the same kind. ok is false when the
// values do not compare (different kinds or unordered types).
func compareValues(a, b any) (cmp int, ok bool) {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		if !bok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	switch av := a.(type) {
	case string:
		bv, bok := b.(string)
		if !bok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case time.Time:
		bv, bok := b.(time.Time)
		if !bok {
			return 0, false
		}
		return av.Compare(bv), true
	case bool:
		bv, bok := b.(bool)
		if !bok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

// sortCompare is compareValues extended to a total order for sorting:
// missing and null first, then incomparable kinds by kind name.
func sortCompare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if c, ok := compareValues(a, b); ok {
		return c
	}
	return strings.Compare(kindName(a), kindName(b))
}

func kindName(v any) string {
	if _, ok := toFloat(v); ok {
		return "number"
	}
	return reflect.TypeOf(v).String()
}

// valuesEqual compares numbers numerically and everything else
// structurally, treating Doc and map[string]any alike.
func valuesEqual(a, b any) bool {
	if c, ok := compareValues(a, b); ok {
		return c == 0
	}
	ad, aIsDoc := ir.AsDoc(a)
	bd, bIsDoc := ir.AsDoc(b)
	if aIsDoc && bIsDoc {
		if len(ad) != len(bd) {
			return false
		}
		for k, av := range ad {
			bv, ok := bd[k]
			if !ok || !valuesEqual(av, bv) {
				return false
			}
		}
		return true
	}
	al, aIsList := a.([]any)
	bl, bIsList := b.([]any)
	if aIsList && bIsList {
		if len(al) != len(bl) {
			return false
		}
		for i := range al {
			if !valuesEqual(al[i], bl[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// setPath writes v at a dotted path, creating intermediate documents.
func setPath(d ir.Doc, path string, v any) {
	parts := strings.Split(path, ".")
	cur := d
	for _, p := range parts[:len(parts)-1] {
		next, ok := ir.AsDoc(cur[p])
		if !ok {
			next = ir.Doc{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

// evalExpr evaluates an aggregation expression against d: "$field" paths,
// {"$literal": v}, object expressions and arrays. Anything else is a literal.
func evalExpr(d ir.Doc, expr any) any {
	switch e := expr.(type) {
	case string:
		if strings.HasPrefix(e, "$") && !strings.HasPrefix(e, "$$") {
			v, _ := d.Lookup(e[1:])
			return v
		}
		return e
	case ir.Doc, map[string]any:
		m, _ := ir.AsDoc(e)
		if lit, ok := m["$literal"]; ok && len(m) == 1 {
			return lit
		}
		out := make(ir.Doc, len(m))
		for k, v := range m {
			out[k] = evalExpr(d, v)
		}
		return out
	case []any:
		out := make([]any, len(e))
		for i, v := range e {
			out[i] = evalExpr(d, v)
		}
		return out
	default:
		return expr
	}
}
