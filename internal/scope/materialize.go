package scope

import (
	"context"
	"fmt"

	"github.com/phantien133/active-aggregate/internal/ir"
	"github.com/phantien133/active-aggregate/internal/model"
)

// countField is the output field of the $count stage appended by Count.
const countField = "count"

// Aggregate compiles the relation and executes it in one round trip. The
// cursor is not cached; the caller must close it.
func (r *Relation) Aggregate(ctx context.Context, opts ...CompileOption) (model.Cursor, error) {
	p, err := r.Compile(opts...)
	if err != nil {
		return nil, err
	}
	coll, err := r.collection()
	if err != nil {
		return nil, err
	}
	cfg := newCompileConfig(opts)
	cur, err := coll.Aggregate(ctx, p, model.NewExecOptions(cfg.exec...))
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", coll.Name(), err)
	}
	return cur, nil
}

// Load executes the relation and returns every result in order. A cacheable
// relation executes at most once; later calls return the cached result.
func (r *Relation) Load(ctx context.Context) ([]ir.Doc, error) {
	if r.cacheable && r.hasCache {
		return copyDocs(r.cached), nil
	}
	docs, err := r.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if r.cacheable {
		r.cached = copyDocs(docs)
		r.hasCache = true
	}
	return docs, nil
}

// Each calls fn for each loaded document, stopping at the first error.
func (r *Relation) Each(ctx context.Context, fn func(ir.Doc) error) error {
	docs, err := r.Load(ctx)
	if err != nil {
		return err
	}
	for _, d := range docs {
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of results. It always executes and never touches
// the cache.
func (r *Relation) Count(ctx context.Context, opts ...CompileOption) (int64, error) {
	opts = append(opts[:len(opts):len(opts)], Including(Query{Pipeline: ir.Pipeline{ir.CustomStage("$count", countField)}}))
	docs, err := r.fetch(ctx, opts...)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}
	n, ok := toInt64(docs[0][countField])
	if !ok {
		return 0, fmt.Errorf("count: unexpected result %v", docs[0])
	}
	return n, nil
}

// First returns the first result, if any. It always executes and never
// touches the cache.
func (r *Relation) First(ctx context.Context, opts ...CompileOption) (ir.Doc, bool, error) {
	opts = append(opts[:len(opts):len(opts)], Including(Query{Pipeline: ir.Pipeline{ir.LimitStage(1)}}))
	docs, err := r.fetch(ctx, opts...)
	if err != nil {
		return nil, false, err
	}
	if len(docs) == 0 {
		return nil, false, nil
	}
	return docs[0], true, nil
}

// Pluck returns the values of fields from the loaded results. With one field
// each element is that field's value; with several each element is a []any
// in field order. Documents missing any requested field are skipped. Fields
// may be dotted paths into nested documents.
func (r *Relation) Pluck(ctx context.Context, fields ...string) ([]any, error) {
	if len(fields) == 0 {
		return nil, newInvalidArgumentError(r.registry.name, "pluck requires at least one field")
	}
	docs, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]any, 0, len(docs))
	for _, d := range docs {
		values := make([]any, 0, len(fields))
		for _, f := range fields {
			v, ok := d.Lookup(f)
			if !ok {
				break
			}
			values = append(values, v)
		}
		if len(values) != len(fields) {
			continue
		}
		if len(fields) == 1 {
			out = append(out, values[0])
		} else {
			out = append(out, values)
		}
	}
	return out, nil
}

func (r *Relation) fetch(ctx context.Context, opts ...CompileOption) ([]ir.Doc, error) {
	cur, err := r.Aggregate(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return model.Drain(ctx, cur)
}

func (r *Relation) collection() (model.Collection, error) {
	m, err := r.registry.Model()
	if err != nil {
		return nil, err
	}
	if m.Collection() == nil {
		return nil, NewUnboundModelError(r.registry.name, fmt.Errorf("model %s has no collection", m.Name()))
	}
	return m.Collection(), nil
}

// copyDocs deep-copies docs so the cache never shares documents with a
// caller.
func copyDocs(docs []ir.Doc) []ir.Doc {
	out := make([]ir.Doc, len(docs))
	for i, d := range docs {
		out[i] = d.Clone()
	}
	return out
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
