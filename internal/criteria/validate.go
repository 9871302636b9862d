package criteria

import (
	"fmt"
	"sort"
	"strings"

	"github.com/phantien133/active-aggregate/internal/ir"
)

// ValidationResult contains the structural analysis of a selector.
type ValidationResult struct {
	// Valid is true when no warnings were raised.
	Valid bool

	// Warnings lists structural problems, each prefixed with the selector
	// path where it was found.
	Warnings []string
}

var fieldOperators = map[string]bool{
	"$eq": true, "$ne": true, "$gt": true, "$gte": true, "$lt": true, "$lte": true,
	"$in": true, "$nin": true, "$exists": true, "$type": true, "$regex": true,
	"$options": true, "$elemMatch": true, "$size": true, "$all": true,
	"$not": true, "$mod": true,
}

var topLevelOperators = map[string]bool{
	OpAnd: true, OpOr: true, OpNor: true, "$expr": true, "$text": true,
	"$where": true, "$comment": true,
}

// Validate checks a selector for structural mistakes that the store would
// reject or silently misinterpret:
//  1. $and, $or and $nor take a non-empty array of documents
//  2. $in, $nin and $all take an array
//  3. Operators must be known at their position
//
// Validate is a pure function with no side effects.
func Validate(c *Criteria) ValidationResult {
	v := &validator{
		warnings: []string{},
	}
	v.validateSelector("", c.Selector())

	return ValidationResult{
		Valid:    len(v.warnings) == 0,
		Warnings: v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateSelector(path string, sel ir.Doc) {
	for _, k := range sortedKeys(sel) {
		at := join(path, k)
		val := sel[k]
		if !strings.HasPrefix(k, "$") {
			v.validateFieldValue(at, val)
			continue
		}
		if !topLevelOperators[k] {
			v.addWarning("%s: unknown top-level operator", at)
			continue
		}
		switch k {
		case OpAnd, OpOr, OpNor:
			v.validateLogical(at, val)
		}
	}
}

func (v *validator) validateLogical(path string, val any) {
	list, ok := val.([]any)
	if !ok {
		v.addWarning("%s: expected an array of selectors, got %T", path, val)
		return
	}
	if len(list) == 0 {
		v.addWarning("%s: empty array matches nothing", path)
		return
	}
	for i, item := range list {
		d, ok := ir.AsDoc(item)
		if !ok {
			v.addWarning("%s[%d]: expected a selector document, got %T", path, i, item)
			continue
		}
		v.validateSelector(fmt.Sprintf("%s[%d]", path, i), d)
	}
}

// validateFieldValue checks an operator document such as {"$gt": 5}.
// Plain values (equality matches) are always valid.
func (v *validator) validateFieldValue(path string, val any) {
	d, ok := ir.AsDoc(val)
	if !ok || !hasOperatorKey(d) {
		return
	}
	for _, op := range sortedKeys(d) {
		at := join(path, op)
		if !strings.HasPrefix(op, "$") {
			v.addWarning("%s: operator documents cannot mix operators and fields", at)
			continue
		}
		if !fieldOperators[op] {
			v.addWarning("%s: unknown field operator", at)
			continue
		}
		switch op {
		case "$in", "$nin", "$all":
			if _, ok := d[op].([]any); !ok {
				v.addWarning("%s: expected an array, got %T", at, d[op])
			}
		case "$not":
			v.validateFieldValue(at, d[op])
		}
	}
}

func hasOperatorKey(d ir.Doc) bool {
	for k := range d {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

func sortedKeys(d ir.Doc) []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
