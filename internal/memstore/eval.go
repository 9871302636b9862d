package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/phantien133/active-aggregate/internal/ir"
)

type stageFunc func(docs []ir.Doc, spec any) ([]ir.Doc, error)

var stages map[string]stageFunc

func init() {
	stages = map[string]stageFunc{
		ir.OpMatch:   evalMatch,
		ir.OpGroup:   evalGroup,
		ir.OpSort:    evalSort,
		ir.OpProject: evalProject,
		ir.OpLimit:   evalLimit,
		"$skip":      evalSkip,
		"$count":     evalCount,
		"$unwind":    evalUnwind,
		"$addFields": evalAddFields,
		"$set":       evalAddFields,
	}
}

// Supported reports whether op can be evaluated.
func Supported(op string) bool {
	_, ok := stages[op]
	return ok
}

// Evaluate runs pipeline over docs. The input documents are not modified.
func Evaluate(ctx context.Context, docs []ir.Doc, pipeline ir.Pipeline) ([]ir.Doc, error) {
	cur := docs
	for i, s := range pipeline {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fn, ok := stages[s.Op]
		if !ok {
			return nil, fmt.Errorf("stage %d: unsupported stage %s", i, s.Op)
		}
		next, err := fn(cur, s.Spec)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}
		cur = next
	}
	if cur == nil {
		cur = []ir.Doc{}
	}
	return cur, nil
}

func evalMatch(docs []ir.Doc, spec any) ([]ir.Doc, error) {
	selector, ok := ir.AsDoc(spec)
	if !ok {
		return nil, fmt.Errorf("$match: expected a document, got %T", spec)
	}
	out := make([]ir.Doc, 0, len(docs))
	for _, d := range docs {
		ok, err := matches(d, selector)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func evalSort(docs []ir.Doc, spec any) ([]ir.Doc, error) {
	keys, err := sortKeys(spec)
	if err != nil {
		return nil, err
	}
	out := make([]ir.Doc, len(docs))
	copy(out, docs)
	sort.SliceStable(out, func(i, j int) bool {
		for _, k := range keys {
			a, _ := out[i].Lookup(k.Field)
			b, _ := out[j].Lookup(k.Field)
			c := sortCompare(a, b)
			if c != 0 {
				return (c < 0) == (k.Dir == ir.Asc)
			}
		}
		return false
	})
	return out, nil
}

// sortKeys accepts ir.Sort and, since a plain document has no key order,
// only single-key documents.
func sortKeys(spec any) (ir.Sort, error) {
	switch s := spec.(type) {
	case ir.Sort:
		return s, nil
	case ir.Doc, map[string]any:
		d, _ := ir.AsDoc(s)
		if len(d) != 1 {
			return nil, fmt.Errorf("$sort: a document spec must have exactly one key, got %d", len(d))
		}
		for field, dir := range d {
			n, ok := toInt64(dir)
			if !ok || (n != 1 && n != -1) {
				return nil, fmt.Errorf("$sort: direction for %s must be 1 or -1", field)
			}
			return ir.By(field, ir.Direction(n)), nil
		}
	}
	return nil, fmt.Errorf("$sort: unsupported spec %T", spec)
}

func evalLimit(docs []ir.Doc, spec any) ([]ir.Doc, error) {
	n, ok := toInt64(spec)
	if !ok || n <= 0 {
		return nil, fmt.Errorf("$limit: expected a positive integer, got %v", spec)
	}
	if int64(len(docs)) > n {
		return docs[:n], nil
	}
	return docs, nil
}

func evalSkip(docs []ir.Doc, spec any) ([]ir.Doc, error) {
	n, ok := toInt64(spec)
	if !ok || n < 0 {
		return nil, fmt.Errorf("$skip: expected a non-negative integer, got %v", spec)
	}
	if int64(len(docs)) <= n {
		return []ir.Doc{}, nil
	}
	return docs[n:], nil
}

// evalCount emits {field: n}, or nothing for an empty input.
func evalCount(docs []ir.Doc, spec any) ([]ir.Doc, error) {
	field, ok := spec.(string)
	if !ok || field == "" {
		return nil, fmt.Errorf("$count: expected a field name, got %v", spec)
	}
	if len(docs) == 0 {
		return []ir.Doc{}, nil
	}
	return []ir.Doc{{field: int64(len(docs))}}, nil
}

func evalUnwind(docs []ir.Doc, spec any) ([]ir.Doc, error) {
	var path string
	preserve := false
	switch s := spec.(type) {
	case string:
		path = s
	case ir.Doc, map[string]any:
		d, _ := ir.AsDoc(s)
		path, _ = d["path"].(string)
		preserve, _ = d["preserveNullAndEmptyArrays"].(bool)
	}
	if len(path) < 2 || path[0] != '$' {
		return nil, fmt.Errorf("$unwind: expected a $-prefixed path, got %v", spec)
	}
	field := path[1:]

	out := make([]ir.Doc, 0, len(docs))
	for _, d := range docs {
		v, present := d.Lookup(field)
		list, isList := v.([]any)
		switch {
		case isList && len(list) > 0:
			for _, elem := range list {
				nd := d.Clone()
				setPath(nd, field, elem)
				out = append(out, nd)
			}
		case !isList && present && v != nil:
			out = append(out, d)
		case preserve:
			out = append(out, d)
		}
	}
	return out, nil
}

func evalAddFields(docs []ir.Doc, spec any) ([]ir.Doc, error) {
	fields, ok := ir.AsDoc(spec)
	if !ok {
		return nil, fmt.Errorf("$addFields: expected a document, got %T", spec)
	}
	out := make([]ir.Doc, len(docs))
	for i, d := range docs {
		nd := d.Clone()
		for k, expr := range fields {
			setPath(nd, k, evalExpr(d, expr))
		}
		out[i] = nd
	}
	return out, nil
}
