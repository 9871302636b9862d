package compiler

import (
	"errors"
	"fmt"

	"github.com/phantien133/active-aggregate/internal/criteria"
	"github.com/phantien133/active-aggregate/internal/ir"
	"github.com/phantien133/active-aggregate/internal/model"
	"github.com/phantien133/active-aggregate/internal/scope"
)

// Query builds the scope's own contribution for args, without uses.
func (s *ScopeSpec) Query(args ...any) (scope.Query, error) {
	if want := s.Params(); len(args) < want {
		return scope.Query{}, fmt.Errorf("scope %s expects %d argument(s), got %d", s.Name, want, len(args))
	}

	var q scope.Query
	if s.Match != nil {
		sel, err := substituteDoc(s.Match, args)
		if err != nil {
			return scope.Query{}, fmt.Errorf("match: %w", err)
		}
		q.Criteria = criteria.Where(sel)
	}
	if s.Group != nil {
		g, err := substituteDoc(s.Group, args)
		if err != nil {
			return scope.Query{}, fmt.Errorf("group: %w", err)
		}
		q.Group = g
	}
	if s.Project != nil {
		p, err := substituteDoc(s.Project, args)
		if err != nil {
			return scope.Query{}, fmt.Errorf("project: %w", err)
		}
		q.Project = p
	}
	if len(s.Sort) > 0 {
		sort, err := ir.ParseSort(s.Sort...)
		if err != nil {
			return scope.Query{}, err
		}
		q.Sort = sort
	}
	if s.Limit != nil {
		v, err := substitute(s.Limit, args)
		if err != nil {
			return scope.Query{}, fmt.Errorf("limit: %w", err)
		}
		n, err := toLimit(v)
		if err != nil {
			return scope.Query{}, err
		}
		if n < 0 {
			return scope.Query{}, fmt.Errorf("limit must not be negative, got %d", n)
		}
		q.Limit = n
	}
	for i, raw := range s.Pipeline {
		d, err := substituteDoc(raw, args)
		if err != nil {
			return scope.Query{}, fmt.Errorf("pipeline[%d]: %w", i, err)
		}
		stage, err := ir.StageFromDoc(d)
		if err != nil {
			return scope.Query{}, fmt.Errorf("pipeline[%d]: %w", i, err)
		}
		q.Pipeline = append(q.Pipeline, stage)
	}
	return q, nil
}

// Body returns the registry body for the scope. A scope without uses
// contributes a Query; one with uses contributes a relation built from the
// used scopes followed by its own options, so its own sort and limit win.
func (s *ScopeSpec) Body() scope.Body {
	return func(reg *scope.Registry, args ...any) (any, error) {
		q, err := s.Query(args...)
		if err != nil {
			return nil, err
		}
		if len(s.Uses) == 0 {
			return q, nil
		}

		rel := reg.All()
		for _, u := range s.Uses {
			useArgs, err := substitute(u.Args, args)
			if err != nil {
				return nil, fmt.Errorf("uses %s: %w", u.Name, err)
			}
			list, _ := useArgs.([]any)
			rel = rel.Scope(u.Name, list...)
		}
		rel = rel.Query(q)
		if err := rel.Err(); err != nil {
			return nil, err
		}
		return rel, nil
	}
}

// Install defines every scope of spec on reg.
func Install(reg *scope.Registry, spec *Spec) error {
	for i := range spec.Scopes {
		sc := &spec.Scopes[i]
		if _, err := reg.Define(sc.Name, sc.Body()); err != nil {
			return fmt.Errorf("define %s.%s: %w", spec.Registry, sc.Name, err)
		}
	}
	return nil
}

// Build validates spec and returns a registry with its scopes installed.
// The model is looked up in catalog by name when the spec names one, and
// resolved from the registry name otherwise.
func Build(spec *Spec, catalog *model.Catalog, opts ...scope.Option) (*scope.Registry, error) {
	if errs := Validate(spec); len(errs) > 0 {
		joined := make([]error, len(errs))
		for i, e := range errs {
			joined[i] = e
		}
		return nil, fmt.Errorf("%s: %w", spec.Registry, errors.Join(joined...))
	}

	regOpts := []scope.Option{scope.WithSuffix(spec.suffix())}
	if spec.Model != "" {
		m, ok := catalog.Lookup(spec.Model)
		if !ok {
			return nil, scope.NewUnboundModelError(spec.Registry, fmt.Errorf("no model named %q", spec.Model))
		}
		regOpts = append(regOpts, scope.WithModel(m))
	} else {
		regOpts = append(regOpts, scope.WithResolver(catalog))
	}
	if spec.Cache {
		regOpts = append(regOpts, scope.WithCaching())
	}
	regOpts = append(regOpts, opts...)

	reg := scope.NewRegistry(spec.Registry, regOpts...)
	if err := Install(reg, spec); err != nil {
		return nil, err
	}
	return reg, nil
}
