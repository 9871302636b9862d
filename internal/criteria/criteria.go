package criteria

import (
	"sort"

	"github.com/phantien133/active-aggregate/internal/ir"
)

// Logical operators understood at the top level of a selector.
const (
	OpAnd = "$and"
	OpOr  = "$or"
	OpNor = "$nor"
)

// Criteria is an immutable filter selector.
type Criteria struct {
	selector ir.Doc
}

// All returns the criteria that matches every document.
func All() *Criteria {
	return &Criteria{}
}

// Where returns criteria matching cond.
func Where(cond ir.Doc) *Criteria {
	return &Criteria{selector: cond.Clone()}
}

// Where narrows c by cond.
func (c *Criteria) Where(cond ir.Doc) *Criteria {
	return c.And(Where(cond))
}

// In narrows c to documents whose field is one of values.
func (c *Criteria) In(field string, values ...any) *Criteria {
	return c.And(Where(ir.Doc{field: ir.Doc{"$in": toList(values)}}))
}

// AnyOf narrows c to documents matching at least one of conds.
func (c *Criteria) AnyOf(conds ...ir.Doc) *Criteria {
	if len(conds) == 0 {
		return c.clone()
	}
	return c.And(Where(ir.Doc{OpOr: docsToList(conds)}))
}

// AllOf narrows c to documents matching every one of conds.
func (c *Criteria) AllOf(conds ...ir.Doc) *Criteria {
	if len(conds) == 0 {
		return c.clone()
	}
	return c.And(Where(ir.Doc{OpAnd: docsToList(conds)}))
}

// And returns the conjunction of c and other. Either side may be nil.
func (c *Criteria) And(other *Criteria) *Criteria {
	switch {
	case c.IsEmpty() && other.IsEmpty():
		return All()
	case c.IsEmpty():
		return other.clone()
	case other.IsEmpty():
		return c.clone()
	}

	if disjoint(c.selector, other.selector) && !hasConjunction(c.selector) && !hasConjunction(other.selector) {
		out := c.selector.Clone()
		for k, v := range other.selector.Clone() {
			out[k] = v
		}
		return &Criteria{selector: out}
	}

	clauses := append(conjuncts(c.selector), conjuncts(other.selector)...)
	return &Criteria{selector: ir.Doc{OpAnd: clauses}}
}

// Selector returns a copy of the selector document. The empty criteria
// yields an empty, non-nil document.
func (c *Criteria) Selector() ir.Doc {
	if c == nil || c.selector == nil {
		return ir.Doc{}
	}
	return c.selector.Clone()
}

// Keys returns the top-level selector keys, sorted.
func (c *Criteria) Keys() []string {
	if c == nil {
		return []string{}
	}
	keys := make([]string, 0, len(c.selector))
	for k := range c.selector {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsEmpty reports whether c matches every document.
func (c *Criteria) IsEmpty() bool {
	return c == nil || len(c.selector) == 0
}

func (c *Criteria) clone() *Criteria {
	if c == nil {
		return All()
	}
	return &Criteria{selector: c.selector.Clone()}
}

// hasConjunction reports whether sel carries a top-level $and, which is
// flattened rather than merged as a key.
func hasConjunction(sel ir.Doc) bool {
	_, ok := sel[OpAnd]
	return ok
}

func disjoint(a, b ir.Doc) bool {
	for k := range b {
		if _, ok := a[k]; ok {
			return false
		}
	}
	return true
}

// conjuncts splits a selector into independent clauses. A selector that is
// exactly {"$and": [...]} contributes its elements; any other selector
// contributes one clause per key, in key order.
func conjuncts(sel ir.Doc) []any {
	if len(sel) == 1 {
		if list, ok := sel[OpAnd].([]any); ok {
			out := make([]any, 0, len(list))
			for _, item := range list {
				if d, ok := ir.AsDoc(item); ok {
					out = append(out, d.Clone())
				} else {
					out = append(out, item)
				}
			}
			return out
		}
	}
	copied := sel.Clone()
	out := make([]any, 0, len(copied))
	for _, k := range copied.SortedKeys() {
		out = append(out, ir.Doc{k: copied[k]})
	}
	return out
}

func docsToList(docs []ir.Doc) []any {
	out := make([]any, len(docs))
	for i, d := range docs {
		out[i] = d.Clone()
	}
	return out
}

func toList(values []any) []any {
	// A single slice argument is taken as the value list itself.
	if len(values) == 1 {
		switch list := values[0].(type) {
		case []any:
			values = list
		case []string:
			values = make([]any, len(list))
			for i, v := range list {
				values[i] = v
			}
		}
	}
	out := make([]any, len(values))
	copy(out, values)
	return out
}
