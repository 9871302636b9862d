package harness

import (
	"github.com/phantien133/active-aggregate/internal/ir"
	"github.com/phantien133/active-aggregate/internal/store"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// Pipeline is the compiled pipeline, empty if compilation failed.
	Pipeline ir.Pipeline `json:"pipeline"`

	// Fingerprint identifies the compiled pipeline.
	Fingerprint string `json:"fingerprint,omitempty"`

	// Documents are the results of executing the pipeline.
	Documents []ir.Doc `json:"documents"`

	// Error is the build or execution error, if any.
	Error string `json:"error,omitempty"`

	// Executions is the journal of every pipeline sent to a collection,
	// including those issued by count and pluck assertions.
	Executions []store.Execution `json:"-"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Pipeline:  ir.Pipeline{},
		Documents: []ir.Doc{},
		Errors:    []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
