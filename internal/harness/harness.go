package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/phantien133/active-aggregate/internal/compiler"
	"github.com/phantien133/active-aggregate/internal/ir"
	"github.com/phantien133/active-aggregate/internal/memstore"
	"github.com/phantien133/active-aggregate/internal/model"
	"github.com/phantien133/active-aggregate/internal/scope"
	"github.com/phantien133/active-aggregate/internal/store"
	"github.com/phantien133/active-aggregate/internal/testutil"
)

// journalEpoch is the first timestamp of every scenario journal.
var journalEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Harness holds the per-scenario environment.
type Harness struct {
	store      *store.Store
	registries map[string]*scope.Registry
	logger     *slog.Logger
}

// Option configures Run.
type Option func(*Harness)

// WithLogger sets the logger. Defaults to discarding output.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against fresh in-memory collections and a fresh
// in-memory journal. Execution flow:
// 1. Load specs and fixtures
// 2. Build one registry per spec over journaled in-memory collections
// 3. Apply the chain to the selected registry
// 4. Compile and execute
// 5. Evaluate assertions
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:      st,
		registries: make(map[string]*scope.Registry),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}

	if err := h.setup(scenario); err != nil {
		return nil, err
	}
	reg, err := h.registry(scenario.Registry)
	if err != nil {
		return nil, err
	}

	var compileOpts []scope.CompileOption
	if scenario.SelectAll {
		compileOpts = append(compileOpts, scope.SelectAll())
	}

	result := NewResult()
	rel, runErr := applyChain(reg, scenario.Chain)
	if runErr == nil {
		runErr = h.execute(ctx, rel, compileOpts, result)
	}
	if runErr != nil {
		result.Error = runErr.Error()
		h.logger.Info("scenario failed to run", "scenario", scenario.Name, "error", runErr)
	}

	actx := &AssertionContext{
		Ctx:      ctx,
		Relation: rel,
		Options:  compileOpts,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	if runErr != nil && !expectsError(scenario.Assertions) {
		result.AddError(fmt.Sprintf("unexpected error: %v", runErr))
	}

	execs, err := st.ReadExecutions(ctx, store.ExecutionFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	result.Executions = execs

	h.logger.Info("scenario completed",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"stages", len(result.Pipeline),
		"documents", len(result.Documents),
		"executions", len(execs),
	)
	return result, nil
}

// setup loads specs and fixtures and builds the registries.
func (h *Harness) setup(scenario *Scenario) error {
	var specs []*compiler.Spec
	for _, path := range scenario.Specs {
		loaded, err := compiler.LoadSpecs(path)
		if err != nil {
			return fmt.Errorf("failed to load specs: %w", err)
		}
		specs = append(specs, loaded...)
	}

	fixtures := memstore.Fixtures{}
	if scenario.Fixtures != "" {
		loaded, err := memstore.LoadFixtures(scenario.Fixtures)
		if err != nil {
			return fmt.Errorf("failed to load fixtures: %w", err)
		}
		fixtures = loaded
	}

	ids := testutil.NewSequenceIDGenerator("exec")
	clock := testutil.NewStepClock(journalEpoch, time.Millisecond)
	catalog := model.NewCatalog()
	for _, spec := range specs {
		name := spec.CollectionName()
		coll := memstore.New(name, fixtures[name]...)
		journaled := h.store.Journal(coll,
			store.WithRegistry(spec.Registry),
			store.WithIDGenerator(ids),
			store.WithClock(clock),
			store.WithLogger(h.logger),
		)
		catalog.Register(model.New(spec.ModelName(), journaled))
	}

	for _, spec := range specs {
		reg, err := compiler.Build(spec, catalog)
		if err != nil {
			return fmt.Errorf("failed to build %s: %w", spec.Registry, err)
		}
		h.registries[spec.Registry] = reg
	}
	return nil
}

func (h *Harness) registry(name string) (*scope.Registry, error) {
	if name != "" {
		reg, ok := h.registries[name]
		if !ok {
			return nil, fmt.Errorf("registry %q not defined by the scenario specs", name)
		}
		return reg, nil
	}
	if len(h.registries) != 1 {
		return nil, fmt.Errorf("scenario loads %d registries; set registry", len(h.registries))
	}
	for _, reg := range h.registries {
		return reg, nil
	}
	panic("unreachable")
}

// execute compiles and runs rel, filling result.
func (h *Harness) execute(ctx context.Context, rel *scope.Relation, opts []scope.CompileOption, result *Result) error {
	p, err := rel.Compile(opts...)
	if err != nil {
		return err
	}
	result.Pipeline = p
	if result.Fingerprint, err = ir.Fingerprint(p); err != nil {
		return err
	}

	cur, err := rel.Aggregate(ctx, opts...)
	if err != nil {
		return err
	}
	docs, err := model.Drain(ctx, cur)
	if err != nil {
		return err
	}
	result.Documents = docs
	return nil
}

// applyChain builds the relation described by chain, starting from All().
func applyChain(reg *scope.Registry, chain []Step) (*scope.Relation, error) {
	rel := reg.All()
	for i, step := range chain {
		switch {
		case step.Scope != "":
			rel = rel.Scope(step.Scope, step.Args...)
		case step.Where != nil:
			rel = rel.Where(ir.Doc(step.Where))
		case step.Group != nil:
			rel = rel.Group(ir.Doc(step.Group))
		case step.Project != nil:
			rel = rel.Project(ir.Doc(step.Project))
		case len(step.Sort) > 0:
			s, err := ir.ParseSort(step.Sort...)
			if err != nil {
				return rel, fmt.Errorf("chain[%d]: %w", i, err)
			}
			rel = rel.Sort(s)
		case step.Limit != 0:
			rel = rel.Limit(step.Limit)
		case step.Stage != nil:
			st, err := ir.StageFromDoc(ir.Doc(step.Stage))
			if err != nil {
				return rel, fmt.Errorf("chain[%d]: %w", i, err)
			}
			rel = rel.Pipeline(st)
		}
	}
	return rel, rel.Err()
}

func expectsError(assertions []Assertion) bool {
	for _, a := range assertions {
		if a.Type == AssertError {
			return true
		}
	}
	return false
}
