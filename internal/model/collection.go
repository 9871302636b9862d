package model

import (
	"context"
	"fmt"
	"time"

	"github.com/phantien133/active-aggregate/internal/ir"
)

// Collection executes aggregation pipelines against one store collection.
type Collection interface {
	// Name returns the collection name.
	Name() string

	// Aggregate runs the pipeline verbatim in a single round trip.
	Aggregate(ctx context.Context, pipeline ir.Pipeline, opts ExecOptions) (Cursor, error)
}

// Cursor iterates over aggregation results.
type Cursor interface {
	Next(ctx context.Context) bool
	Document() (ir.Doc, error)
	Err() error
	Close(ctx context.Context) error
}

// ExecOptions are passed through to the store untouched.
type ExecOptions struct {
	AllowDiskUse bool
	BatchSize    int32
	MaxTime      time.Duration
	Comment      string
	Hint         any
}

// ExecOption configures ExecOptions.
type ExecOption func(*ExecOptions)

func WithAllowDiskUse() ExecOption {
	return func(o *ExecOptions) { o.AllowDiskUse = true }
}

func WithBatchSize(n int32) ExecOption {
	return func(o *ExecOptions) { o.BatchSize = n }
}

func WithMaxTime(d time.Duration) ExecOption {
	return func(o *ExecOptions) { o.MaxTime = d }
}

func WithComment(c string) ExecOption {
	return func(o *ExecOptions) { o.Comment = c }
}

func WithHint(h any) ExecOption {
	return func(o *ExecOptions) { o.Hint = h }
}

// NewExecOptions applies opts to the zero ExecOptions.
func NewExecOptions(opts ...ExecOption) ExecOptions {
	var o ExecOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Drain reads every remaining document from cur and closes it. The result is
// never nil.
func Drain(ctx context.Context, cur Cursor) (docs []ir.Doc, err error) {
	defer func() {
		if cerr := cur.Close(ctx); cerr != nil && err == nil {
			err = fmt.Errorf("close cursor: %w", cerr)
		}
	}()

	docs = []ir.Doc{}
	for cur.Next(ctx) {
		d, err := cur.Document()
		if err != nil {
			return nil, fmt.Errorf("decode document %d: %w", len(docs), err)
		}
		docs = append(docs, d)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("cursor: %w", err)
	}
	return docs, nil
}

// SliceCursor is a Cursor over documents already in memory.
type SliceCursor struct {
	docs []ir.Doc
	pos  int
	err  error
}

// NewSliceCursor returns a cursor yielding docs in order.
func NewSliceCursor(docs []ir.Doc) *SliceCursor {
	return &SliceCursor{docs: docs, pos: -1}
}

func (c *SliceCursor) Next(ctx context.Context) bool {
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	if c.pos+1 >= len(c.docs) {
		return false
	}
	c.pos++
	return true
}

func (c *SliceCursor) Document() (ir.Doc, error) {
	if c.pos < 0 || c.pos >= len(c.docs) {
		return nil, fmt.Errorf("cursor not positioned on a document")
	}
	return c.docs[c.pos].Clone(), nil
}

func (c *SliceCursor) Err() error { return c.err }

func (c *SliceCursor) Close(context.Context) error { return nil }
