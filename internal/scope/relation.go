package scope

import (
	"github.com/phantien133/active-aggregate/internal/criteria"
	"github.com/phantien133/active-aggregate/internal/ir"
)

// Relation is a deferred, composable query against a registry's model.
//
// Builders such as Where and Group return a new relation and leave the
// receiver untouched. Sort, Limit, AddStages, OverrideStages and Cache modify
// the receiver and return it.
type Relation struct {
	registry *Registry
	name     string
	body     Body

	// seed is the definition-time state; query is the current state.
	seed  Query
	query Query

	// edits records in-place modifications so they survive Generate.
	edits edits

	cacheable bool
	cached    []ir.Doc
	hasCache  bool

	err error
}

type edits struct {
	sort    ir.Sort
	limit   int64
	stages  ir.Pipeline
	replace bool
}

func (e edits) apply(q Query) Query {
	if !e.sort.IsZero() {
		q.Sort = e.sort.Clone()
	}
	if e.limit > 0 {
		q.Limit = e.limit
	}
	if e.replace {
		q.Pipeline = e.stages.Clone()
	} else if len(e.stages) > 0 {
		q.Pipeline = q.Pipeline.Concat(e.stages)
	}
	return q
}

// Registry returns the registry the relation belongs to.
func (r *Relation) Registry() *Registry { return r.registry }

// Name returns the scope name the relation was generated from, or "" for
// base and derived relations.
func (r *Relation) Name() string { return r.name }

// Err returns the first error recorded while building the relation.
func (r *Relation) Err() error { return r.err }

// State returns a copy of the relation's current query state.
func (r *Relation) State() Query { return r.query.Clone() }

// Cacheable reports whether Load caches its result.
func (r *Relation) Cacheable() bool { return r.cacheable }

// Generate evaluates the scope body with args.
//
// A body returning a Query replaces the relation's state with the seed
// merged with that Query and returns the receiver. A body returning a
// relation yields the merge of the seed and that relation. Any other
// result, or no body at all, returns the receiver unchanged. In both merging
// cases in-place edits (Sort, Limit, AddStages, OverrideStages) are applied
// last, so they take precedence over the body.
//
// Each call re-runs the body; the state is always rebuilt from the seed, so
// calling Generate twice with the same arguments gives the same state.
func (r *Relation) Generate(args ...any) *Relation {
	if r.err != nil || r.body == nil {
		return r
	}

	result, err := r.body(r.registry, args...)
	if err != nil {
		r.err = newBodyError(r.registry.name, r.name, err)
		return r
	}

	switch v := result.(type) {
	case Query:
		r.reset(r.seed.Merge(v))
		return r
	case *Query:
		if v != nil {
			r.reset(r.seed.Merge(*v))
		}
		return r
	case *Relation:
		if v == nil {
			return r
		}
		merged, err := r.derive(r.seed).Merge(v)
		if err != nil {
			return merged
		}
		merged.query = r.edits.apply(merged.query)
		merged.seed = merged.query.Clone()
		return merged
	default:
		return r
	}
}

func (r *Relation) reset(q Query) {
	r.query = r.edits.apply(q)
}

// Merge combines r with other, other taking precedence where fields cannot
// be combined. Relations of different registries do not merge; the returned
// relation then carries the SCOPE_MISMATCH error that is also returned.
func (r *Relation) Merge(other *Relation) (*Relation, error) {
	if other == nil {
		return r.derive(r.query), r.err
	}
	if r.err != nil {
		return r.failed(r.err), r.err
	}
	if other.err != nil {
		return r.failed(other.err), other.err
	}
	if r.registry != other.registry {
		err := NewScopeMismatchError(r.registry.name, other.registry.name)
		return r.failed(err), err
	}
	return r.derive(r.query.Merge(other.query)), nil
}

// Where narrows the relation by cond.
func (r *Relation) Where(cond ir.Doc) *Relation {
	return r.with(Query{Criteria: criteria.Where(cond)})
}

// WhereIn narrows the relation to documents whose field is one of values.
func (r *Relation) WhereIn(field string, values ...any) *Relation {
	return r.with(Query{Criteria: criteria.All().In(field, values...)})
}

// AnyOf narrows the relation to documents matching at least one of conds.
func (r *Relation) AnyOf(conds ...ir.Doc) *Relation {
	return r.with(Query{Criteria: criteria.All().AnyOf(conds...)})
}

// AllOf narrows the relation to documents matching all of conds.
func (r *Relation) AllOf(conds ...ir.Doc) *Relation {
	return r.with(Query{Criteria: criteria.All().AllOf(conds...)})
}

// Criteria narrows the relation by c.
func (r *Relation) Criteria(c *criteria.Criteria) *Relation {
	return r.with(Query{Criteria: c})
}

// Group deep-merges spec into the $group specification.
func (r *Relation) Group(spec ir.Doc) *Relation {
	return r.with(Query{Group: spec})
}

// Project deep-merges spec into the $project specification.
func (r *Relation) Project(spec ir.Doc) *Relation {
	return r.with(Query{Project: spec})
}

// Pipeline appends custom stages.
func (r *Relation) Pipeline(stages ...ir.Stage) *Relation {
	return r.with(Query{Pipeline: ir.Pipeline(stages)})
}

// Query merges v, which may be a Query, a *Query or a *Relation. Any other
// value returns the receiver.
func (r *Relation) Query(v any) *Relation {
	switch q := v.(type) {
	case Query:
		return r.with(q)
	case *Query:
		if q == nil {
			return r
		}
		return r.with(*q)
	case *Relation:
		merged, _ := r.Merge(q)
		return merged
	default:
		return r
	}
}

// Scope merges the named scope of the same registry into the relation.
func (r *Relation) Scope(name string, args ...any) *Relation {
	if r.err != nil {
		return r.failed(r.err)
	}
	merged, _ := r.Merge(r.registry.Scope(name, args...))
	return merged
}

// Sort sets the sort specification in place.
func (r *Relation) Sort(s ir.Sort) *Relation {
	r.edits.sort = s.Clone()
	r.query.Sort = s.Clone()
	return r
}

// Limit sets the result cap in place. Zero clears nothing and is ignored;
// negative values record an INVALID_ARGUMENT error.
func (r *Relation) Limit(n int64) *Relation {
	if n < 0 {
		if r.err == nil {
			r.err = newInvalidArgumentError(r.registry.name, "limit must not be negative: %d", n)
		}
		return r
	}
	if n == 0 {
		return r
	}
	r.edits.limit = n
	r.query.Limit = n
	return r
}

// AddStages appends custom stages in place.
func (r *Relation) AddStages(stages ...ir.Stage) *Relation {
	added := ir.Pipeline(stages).Clone()
	r.edits.stages = r.edits.stages.Concat(added)
	r.query.Pipeline = r.query.Pipeline.Concat(added)
	return r
}

// OverrideStages replaces the custom stages in place.
func (r *Relation) OverrideStages(stages ...ir.Stage) *Relation {
	replaced := ir.Pipeline(stages).Clone()
	r.edits.stages = replaced
	r.edits.replace = true
	r.query.Pipeline = replaced.Clone()
	return r
}

// Cache makes Load keep its first result for the life of the relation. The
// cached result is never invalidated, not even by later in-place edits;
// rebuild the relation to see fresh data.
func (r *Relation) Cache() *Relation {
	r.cacheable = true
	return r
}

func (r *Relation) with(q Query) *Relation {
	if r.err != nil {
		return r.failed(r.err)
	}
	return r.derive(r.query.Merge(q))
}

// derive returns a body-less relation whose definition is q.
func (r *Relation) derive(q Query) *Relation {
	return &Relation{
		registry:  r.registry,
		seed:      q.Clone(),
		query:     q.Clone(),
		cacheable: r.cacheable,
		err:       r.err,
	}
}

func (r *Relation) failed(err error) *Relation {
	return &Relation{registry: r.registry, cacheable: r.cacheable, err: err}
}
