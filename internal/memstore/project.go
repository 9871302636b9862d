package memstore

import (
	"fmt"

	"github.com/phantien133/active-aggregate/internal/ir"
)

// projection classifies a $project spec. Inclusion and exclusion cannot be
// mixed, except that _id may always be excluded.
type projection struct {
	exclude  bool
	include  []string
	omit     []string
	computed map[string]any
	dropID   bool
}

func parseProjection(spec ir.Doc) (projection, error) {
	p := projection{computed: map[string]any{}}
	hasInclude := false
	for field, v := range spec {
		flag, isFlag := projectionFlag(v)
		switch {
		case field == "_id" && isFlag && !flag:
			p.dropID = true
		case isFlag && flag:
			hasInclude = true
			p.include = append(p.include, field)
		case isFlag && !flag:
			p.exclude = true
			p.omit = append(p.omit, field)
		default:
			hasInclude = true
			p.computed[field] = v
		}
	}
	if p.exclude && hasInclude {
		return projection{}, fmt.Errorf("$project: cannot mix inclusion and exclusion")
	}
	if !hasInclude {
		p.exclude = true
	}
	return p, nil
}

// projectionFlag interprets 0/1 and booleans as include/exclude flags.
func projectionFlag(v any) (include bool, ok bool) {
	if b, isBool := v.(bool); isBool {
		return b, true
	}
	if n, isInt := toInt64(v); isInt {
		return n != 0, true
	}
	return false, false
}

func evalProject(docs []ir.Doc, spec any) ([]ir.Doc, error) {
	ps, ok := ir.AsDoc(spec)
	if !ok || len(ps) == 0 {
		return nil, fmt.Errorf("$project: expected a non-empty document, got %v", spec)
	}
	p, err := parseProjection(ps)
	if err != nil {
		return nil, err
	}

	out := make([]ir.Doc, len(docs))
	for i, d := range docs {
		out[i] = p.apply(d)
	}
	return out, nil
}

func (p projection) apply(d ir.Doc) ir.Doc {
	if p.exclude {
		nd := d.Clone()
		for _, f := range p.omit {
			deletePath(nd, f)
		}
		if p.dropID {
			delete(nd, "_id")
		}
		return nd
	}

	nd := ir.Doc{}
	if id, ok := d["_id"]; ok && !p.dropID {
		nd["_id"] = id
	}
	for _, f := range p.include {
		if v, ok := d.Lookup(f); ok {
			setPath(nd, f, v)
		}
	}
	for f, expr := range p.computed {
		setPath(nd, f, evalExpr(d, expr))
	}
	return nd
}

func deletePath(d ir.Doc, path string) {
	parent, leaf := d, path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			v, ok := d.Lookup(path[:i])
			if !ok {
				return
			}
			parent, ok = ir.AsDoc(v)
			if !ok {
				return
			}
			leaf = path[i+1:]
			break
		}
	}
	delete(parent, leaf)
}
