package testutil

import (
	"context"
	"sync"

	"github.com/phantien133/active-aggregate/internal/ir"
	"github.com/phantien133/active-aggregate/internal/model"
)

// Call is one recorded Aggregate invocation.
type Call struct {
	Pipeline ir.Pipeline
	Options  model.ExecOptions
}

// RecordingCollection is a model.Collection that records every pipeline it
// receives and answers with canned documents. It never evaluates the
// pipeline.
type RecordingCollection struct {
	mu    sync.Mutex
	name  string
	docs  []ir.Doc
	err   error
	calls []Call
}

// NewRecordingCollection returns a collection answering every call with docs.
func NewRecordingCollection(name string, docs ...ir.Doc) *RecordingCollection {
	return &RecordingCollection{name: name, docs: docs}
}

// FailWith makes later calls return err.
func (c *RecordingCollection) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Respond replaces the canned documents.
func (c *RecordingCollection) Respond(docs ...ir.Doc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = docs
}

func (c *RecordingCollection) Name() string { return c.name }

func (c *RecordingCollection) Aggregate(_ context.Context, pipeline ir.Pipeline, opts model.ExecOptions) (model.Cursor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, Call{Pipeline: pipeline.Clone(), Options: opts})
	if c.err != nil {
		return nil, c.err
	}
	docs := make([]ir.Doc, len(c.docs))
	for i, d := range c.docs {
		docs[i] = d.Clone()
	}
	return model.NewSliceCursor(docs), nil
}

// Calls returns the recorded invocations.
func (c *RecordingCollection) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.calls))
	copy(out, c.calls)
	return out
}

// CallCount returns the number of Aggregate invocations.
func (c *RecordingCollection) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

// LastPipeline returns the most recent pipeline, or nil.
func (c *RecordingCollection) LastPipeline() ir.Pipeline {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.calls) == 0 {
		return nil
	}
	return c.calls[len(c.calls)-1].Pipeline
}
