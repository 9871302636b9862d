package scope

import (
	"errors"
	"sort"
	"sync"

	"github.com/phantien133/active-aggregate/internal/criteria"
	"github.com/phantien133/active-aggregate/internal/ir"
	"github.com/phantien133/active-aggregate/internal/model"
)

// DefaultSuffix is stripped from a registry name to derive its model name.
const DefaultSuffix = "Aggregate"

// Body computes a scope's contribution from its arguments. It may return a
// Query (or *Query), which is merged into the scope's seed, or a *Relation,
// which is merged into the generated relation. Any other result leaves the
// relation unchanged. The registry is passed so bodies can build on sibling
// scopes by name.
type Body func(reg *Registry, args ...any) (any, error)

// Template is a defined scope: its seed options and optional body.
type Template struct {
	Name string
	Seed Query
	Body Body
}

// ScopeFunc is the accessor returned by Define. Each call generates a fresh
// relation.
type ScopeFunc func(args ...any) *Relation

// Resolver finds the model for a registry that was not bound explicitly.
type Resolver interface {
	Resolve(typeName, suffix string) (*model.Model, error)
}

// Option configures a Registry.
type Option func(*Registry)

// WithModel binds the registry to m.
func WithModel(m *model.Model) Option {
	return func(r *Registry) { r.model = m }
}

// WithResolver sets the resolver used when no model is bound.
func WithResolver(res Resolver) Option {
	return func(r *Registry) { r.resolver = res }
}

// WithSuffix overrides DefaultSuffix.
func WithSuffix(suffix string) Option {
	return func(r *Registry) { r.suffix = suffix }
}

// WithCaching makes relations generated by the registry cache their results.
func WithCaching() Option {
	return func(r *Registry) { r.caching = true }
}

// Registry holds the scopes defined for one model.
type Registry struct {
	name     string
	suffix   string
	resolver Resolver
	caching  bool

	mu     sync.RWMutex
	model  *model.Model
	scopes map[string]*Template
}

// NewRegistry creates a registry. name is the defining type name, such as
// "OrderAggregate"; it is used for model resolution and in errors.
func NewRegistry(name string, opts ...Option) *Registry {
	r := &Registry{
		name:   name,
		suffix: DefaultSuffix,
		scopes: make(map[string]*Template),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Name() string { return r.name }

// Bind binds the registry to m. A registry that already has a model can
// only be re-bound to the same model.
func (r *Registry) Bind(m *model.Model) error {
	if m == nil {
		return newInvalidArgumentError(r.name, "cannot bind a nil model")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.model != nil && r.model != m {
		return newInvalidArgumentError(r.name, "already bound to model %s", r.model.Name())
	}
	r.model = m
	return nil
}

// Model returns the bound model, resolving it through the resolver on first
// use. A resolved model is kept for the life of the registry.
func (r *Registry) Model() (*model.Model, error) {
	r.mu.RLock()
	m := r.model
	r.mu.RUnlock()
	if m != nil {
		return m, nil
	}
	if r.resolver == nil {
		return nil, NewUnboundModelError(r.name, nil)
	}

	resolved, err := r.resolver.Resolve(r.name, r.suffix)
	if err != nil {
		return nil, NewUnboundModelError(r.name, err)
	}
	if resolved == nil {
		return nil, NewUnboundModelError(r.name, errors.New("resolver returned no model"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.model == nil {
		r.model = resolved
	}
	return r.model, nil
}

// Define registers a scope. It fails when the registry has no model.
// Defining an existing name replaces the earlier definition.
func (r *Registry) Define(name string, body Body) (ScopeFunc, error) {
	return r.DefineWithSeed(name, Query{}, body)
}

// DefineWithSeed registers a scope whose relations start from seed before
// the body's result is merged in.
func (r *Registry) DefineWithSeed(name string, seed Query, body Body) (ScopeFunc, error) {
	if name == "" {
		return nil, newInvalidArgumentError(r.name, "scope name must not be empty")
	}
	if _, err := r.Model(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.scopes[name] = &Template{Name: name, Seed: seed.Clone(), Body: body}
	r.mu.Unlock()

	return func(args ...any) *Relation {
		return r.Scope(name, args...)
	}, nil
}

// ScopeNames returns the defined scope names, sorted.
func (r *Registry) ScopeNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.scopes))
	for n := range r.scopes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// HasScope reports whether name is defined.
func (r *Registry) HasScope(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.scopes[name]
	return ok
}

// Template returns the definition of name.
func (r *Registry) Template(name string) (*Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.scopes[name]
	return t, ok
}

// Scope generates the relation for name with args. An undefined name yields
// a relation carrying an UNKNOWN_MEMBER error.
func (r *Registry) Scope(name string, args ...any) *Relation {
	rel, ok := r.Resolve(name, args...)
	if !ok {
		return r.failed(NewUnknownMemberError(r.name, name))
	}
	return rel
}

// Resolve is Scope with an explicit found flag.
func (r *Registry) Resolve(name string, args ...any) (*Relation, bool) {
	t, ok := r.Template(name)
	if !ok {
		return nil, false
	}
	rel := r.newRelation(name, t.Seed, t.Body)
	return rel.Generate(args...), true
}

// All returns the base relation: every document, no stages beyond $match.
func (r *Registry) All() *Relation {
	return r.newRelation("", Query{}, nil)
}

func (r *Registry) Where(cond ir.Doc) *Relation { return r.All().Where(cond) }

func (r *Registry) WhereIn(field string, values ...any) *Relation {
	return r.All().WhereIn(field, values...)
}

func (r *Registry) AnyOf(conds ...ir.Doc) *Relation { return r.All().AnyOf(conds...) }

func (r *Registry) AllOf(conds ...ir.Doc) *Relation { return r.All().AllOf(conds...) }

func (r *Registry) Criteria(c *criteria.Criteria) *Relation { return r.All().Criteria(c) }

func (r *Registry) Group(spec ir.Doc) *Relation { return r.All().Group(spec) }

func (r *Registry) Project(spec ir.Doc) *Relation { return r.All().Project(spec) }

func (r *Registry) Pipeline(stages ...ir.Stage) *Relation { return r.All().Pipeline(stages...) }

func (r *Registry) Sort(s ir.Sort) *Relation { return r.All().Sort(s) }

func (r *Registry) Limit(n int64) *Relation { return r.All().Limit(n) }

func (r *Registry) Query(v any) *Relation { return r.All().Query(v) }

// newRelation builds a relation whose criteria default to the model's
// full-collection criteria.
func (r *Registry) newRelation(name string, seed Query, body Body) *Relation {
	rel := &Relation{
		registry:  r,
		name:      name,
		body:      body,
		cacheable: r.caching,
	}
	m, err := r.Model()
	if err != nil {
		rel.err = err
		return rel
	}
	if seed.Criteria == nil {
		seed.Criteria = m.All()
	}
	rel.seed = seed.Clone()
	rel.query = rel.seed.Clone()
	return rel
}

func (r *Registry) failed(err error) *Relation {
	return &Relation{registry: r, err: err}
}
