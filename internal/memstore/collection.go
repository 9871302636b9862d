package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/phantien133/active-aggregate/internal/ir"
	"github.com/phantien133/active-aggregate/internal/model"
)

// Collection holds documents in insertion order.
//
// Thread-safety: safe for concurrent use; Aggregate works on a snapshot.
type Collection struct {
	name string

	mu   sync.RWMutex
	docs []ir.Doc
}

var _ model.Collection = (*Collection)(nil)

// New returns a collection holding copies of docs.
func New(name string, docs ...ir.Doc) *Collection {
	c := &Collection{name: name}
	c.Insert(docs...)
	return c
}

func (c *Collection) Name() string { return c.name }

// Insert appends copies of docs.
func (c *Collection) Insert(docs ...ir.Doc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range docs {
		c.docs = append(c.docs, d.Clone())
	}
}

// Len returns the number of stored documents.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

// Aggregate evaluates the pipeline over a snapshot of the collection. MaxTime
// bounds evaluation through the context; the other options have no effect in
// memory.
func (c *Collection) Aggregate(ctx context.Context, pipeline ir.Pipeline, opts model.ExecOptions) (model.Cursor, error) {
	if opts.MaxTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.MaxTime)
		defer cancel()
	}

	c.mu.RLock()
	docs := make([]ir.Doc, len(c.docs))
	for i, d := range c.docs {
		docs[i] = d.Clone()
	}
	c.mu.RUnlock()

	out, err := Evaluate(ctx, docs, pipeline)
	if err != nil {
		return nil, fmt.Errorf("memstore: %s: %w", c.name, err)
	}
	return model.NewSliceCursor(out), nil
}
