package scope

import (
	"strings"

	"github.com/phantien133/active-aggregate/internal/ir"
	"github.com/phantien133/active-aggregate/internal/model"
)

type compileConfig struct {
	selectAll bool
	extra     []Query
	exec      []model.ExecOption
}

// CompileOption configures Compile and the terminal operations.
type CompileOption func(*compileConfig)

// SelectAll adds a $project stage passing through every filtered field when
// the relation has no explicit projection.
func SelectAll() CompileOption {
	return func(c *compileConfig) { c.selectAll = true }
}

// Including merges q into a copy of the relation before compiling. The
// relation itself is not modified.
func Including(q Query) CompileOption {
	return func(c *compileConfig) { c.extra = append(c.extra, q) }
}

// WithExec passes execution options to the collection. Compile ignores them.
func WithExec(opts ...model.ExecOption) CompileOption {
	return func(c *compileConfig) { c.exec = append(c.exec, opts...) }
}

func newCompileConfig(opts []CompileOption) compileConfig {
	var cfg compileConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Compile produces the pipeline for the relation. The stage order is fixed:
// $match, $group, $sort, $project, $limit, then custom stages in the order
// they were added. Empty parts produce no stage.
func (r *Relation) Compile(opts ...CompileOption) (ir.Pipeline, error) {
	if r.err != nil {
		return nil, r.err
	}
	cfg := newCompileConfig(opts)
	return compileQuery(r.effectiveQuery(cfg), cfg.selectAll), nil
}

// Fingerprint returns the content identity of the compiled pipeline.
func (r *Relation) Fingerprint(opts ...CompileOption) (string, error) {
	p, err := r.Compile(opts...)
	if err != nil {
		return "", err
	}
	return ir.Fingerprint(p)
}

func (r *Relation) effectiveQuery(cfg compileConfig) Query {
	q := r.query
	for _, extra := range cfg.extra {
		q = q.Merge(extra)
	}
	return q
}

func compileQuery(q Query, selectAll bool) ir.Pipeline {
	p := ir.Pipeline{}
	selector := q.Criteria.Selector()

	if len(selector) > 0 {
		p = append(p, ir.MatchStage(selector))
	}
	if len(q.Group) > 0 {
		p = append(p, ir.GroupStage(q.Group.Clone()))
	}
	if !q.Sort.IsZero() {
		p = append(p, ir.SortStage(q.Sort.Clone()))
	}
	if len(q.Project) > 0 {
		p = append(p, ir.ProjectStage(q.Project.Clone()))
	} else if selectAll {
		if derived := derivedProjection(selector); len(derived) > 0 {
			p = append(p, ir.ProjectStage(derived))
		}
	}
	if q.Limit > 0 {
		p = append(p, ir.LimitStage(q.Limit))
	}
	return append(p, q.Pipeline.Clone()...)
}

// derivedProjection maps each filtered field to itself. Operator keys such
// as $or are not fields and are skipped.
func derivedProjection(selector ir.Doc) ir.Doc {
	out := ir.Doc{}
	for k := range selector {
		if strings.HasPrefix(k, "$") {
			continue
		}
		out[k] = "$" + k
	}
	return out
}
