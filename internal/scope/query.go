package scope

import (
	"github.com/phantien133/active-aggregate/internal/criteria"
	"github.com/phantien133/active-aggregate/internal/ir"
)

// Query is the deferred state of a relation. The zero value is empty: it
// matches everything and adds no stages.
type Query struct {
	// Criteria is the filter; nil means no filter.
	Criteria *criteria.Criteria

	// Pipeline holds custom stages, appended after the compiled stages.
	Pipeline ir.Pipeline

	// Group is the $group specification.
	Group ir.Doc

	// Project is the $project specification.
	Project ir.Doc

	// Sort is the ordered sort specification.
	Sort ir.Sort

	// Limit caps the number of results; 0 means unset.
	Limit int64
}

// Merge returns the combination of q and other, with other taking
// precedence where a field cannot be combined. Neither side is modified.
func (q Query) Merge(other Query) Query {
	out := Query{
		Criteria: mergeCriteria(q.Criteria, other.Criteria),
		Pipeline: q.Pipeline.Concat(other.Pipeline),
		Group:    ir.DeepMerge(q.Group, other.Group),
		Project:  ir.DeepMerge(q.Project, other.Project),
		Sort:     q.Sort.Clone(),
		Limit:    q.Limit,
	}
	if !other.Sort.IsZero() {
		out.Sort = other.Sort.Clone()
	}
	if other.Limit > 0 {
		out.Limit = other.Limit
	}
	return out
}

// Clone returns a deep copy of q.
func (q Query) Clone() Query {
	return Query{}.Merge(q)
}

// IsZero reports whether q would compile to an empty pipeline.
func (q Query) IsZero() bool {
	return q.Criteria.IsEmpty() &&
		len(q.Pipeline) == 0 &&
		len(q.Group) == 0 &&
		len(q.Project) == 0 &&
		q.Sort.IsZero() &&
		q.Limit == 0
}

func mergeCriteria(a, b *criteria.Criteria) *criteria.Criteria {
	if a == nil && b == nil {
		return nil
	}
	return a.And(b)
}
