package memstore

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/phantien133/active-aggregate/internal/ir"
)

// matches reports whether d satisfies selector.
func matches(d ir.Doc, selector ir.Doc) (bool, error) {
	for key, cond := range selector {
		ok, err := matchKey(d, key, cond)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchKey(d ir.Doc, key string, cond any) (bool, error) {
	switch key {
	case "$and", "$or", "$nor":
		return matchLogical(d, key, cond)
	case "$comment":
		return true, nil
	}
	if strings.HasPrefix(key, "$") {
		return false, fmt.Errorf("$match: unsupported operator %s", key)
	}

	value, present := d.Lookup(key)
	if ops, ok := ir.AsDoc(cond); ok && isOperatorDoc(ops) {
		return matchOperators(value, present, ops)
	}
	return matchEquality(value, present, cond), nil
}

func matchLogical(d ir.Doc, op string, cond any) (bool, error) {
	list, ok := cond.([]any)
	if !ok || len(list) == 0 {
		return false, fmt.Errorf("$match: %s needs a non-empty array", op)
	}
	for _, item := range list {
		sub, ok := ir.AsDoc(item)
		if !ok {
			return false, fmt.Errorf("$match: %s element must be a document, got %T", op, item)
		}
		ok, err := matches(d, sub)
		if err != nil {
			return false, err
		}
		switch {
		case op == "$and" && !ok:
			return false, nil
		case op == "$or" && ok:
			return true, nil
		case op == "$nor" && ok:
			return false, nil
		}
	}
	return op != "$or", nil
}

func isOperatorDoc(d ir.Doc) bool {
	if len(d) == 0 {
		return false
	}
	for k := range d {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

// matchEquality matches a plain value. An array field matches when the
// whole array or any element equals want; a missing field equals null.
func matchEquality(value any, present bool, want any) bool {
	if !present {
		return want == nil
	}
	if valuesEqual(value, want) {
		return true
	}
	if list, ok := value.([]any); ok {
		for _, elem := range list {
			if valuesEqual(elem, want) {
				return true
			}
		}
	}
	return false
}

func matchOperators(value any, present bool, ops ir.Doc) (bool, error) {
	for op, arg := range ops {
		ok, err := matchOperator(value, present, op, arg, ops)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchOperator(value any, present bool, op string, arg any, ops ir.Doc) (bool, error) {
	switch op {
	case "$eq":
		return matchEquality(value, present, arg), nil
	case "$ne":
		return !matchEquality(value, present, arg), nil
	case "$gt", "$gte", "$lt", "$lte":
		return matchComparison(value, present, op, arg), nil
	case "$in", "$nin":
		list, ok := arg.([]any)
		if !ok {
			return false, fmt.Errorf("$match: %s needs an array, got %T", op, arg)
		}
		found := false
		for _, want := range list {
			if matchEquality(value, present, want) {
				found = true
				break
			}
		}
		return found == (op == "$in"), nil
	case "$exists":
		want, ok := arg.(bool)
		if !ok {
			return false, fmt.Errorf("$match: $exists needs a boolean, got %T", arg)
		}
		return present == want, nil
	case "$not":
		sub, ok := ir.AsDoc(arg)
		if !ok || !isOperatorDoc(sub) {
			return false, fmt.Errorf("$match: $not needs an operator document")
		}
		ok, err := matchOperators(value, present, sub)
		return !ok, err
	case "$size":
		n, ok := toInt64(arg)
		if !ok {
			return false, fmt.Errorf("$match: $size needs an integer, got %T", arg)
		}
		list, isList := value.([]any)
		return isList && int64(len(list)) == n, nil
	case "$regex":
		return matchRegex(value, arg, ops["$options"])
	case "$options":
		return true, nil
	default:
		return false, fmt.Errorf("$match: unsupported operator %s", op)
	}
}

func matchComparison(value any, present bool, op string, arg any) bool {
	if !present {
		return false
	}
	candidates := []any{value}
	if list, ok := value.([]any); ok {
		candidates = list
	}
	for _, v := range candidates {
		c, ok := compareValues(v, arg)
		if !ok {
			continue
		}
		switch {
		case op == "$gt" && c > 0,
			op == "$gte" && c >= 0,
			op == "$lt" && c < 0,
			op == "$lte" && c <= 0:
			return true
		}
	}
	return false
}

func matchRegex(value, pattern, options any) (bool, error) {
	expr, ok := pattern.(string)
	if !ok {
		return false, fmt.Errorf("$match: $regex needs a string, got %T", pattern)
	}
	if opts, ok := options.(string); ok && opts != "" {
		flags := strings.Map(func(r rune) rune {
			if strings.ContainsRune("imsU", r) {
				return r
			}
			return -1
		}, opts)
		if flags != "" {
			expr = "(?" + flags + ")" + expr
		}
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return false, fmt.Errorf("$match: $regex: %w", err)
	}
	s, ok := value.(string)
	return ok && re.MatchString(s), nil
}
