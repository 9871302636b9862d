package mongostore

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/phantien133/active-aggregate/internal/ir"
	"github.com/phantien133/active-aggregate/internal/model"
)

// Collection adapts a *mongo.Collection.
type Collection struct {
	coll   *mongo.Collection
	logger *slog.Logger
}

var _ model.Collection = (*Collection)(nil)

// Option configures a Collection.
type Option func(*Collection)

// WithLogger sets the logger used for debug output. Defaults to
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Collection) { c.logger = l }
}

// New wraps coll.
func New(coll *mongo.Collection, opts ...Option) *Collection {
	c := &Collection{coll: coll, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open is shorthand for New(client.Database(db).Collection(name)).
func Open(client *mongo.Client, db, name string, opts ...Option) *Collection {
	return New(client.Database(db).Collection(name), opts...)
}

func (c *Collection) Name() string { return c.coll.Name() }

// Aggregate sends the pipeline in one round trip. MaxTime is enforced with a
// context deadline on the initial command.
func (c *Collection) Aggregate(ctx context.Context, pipeline ir.Pipeline, opts model.ExecOptions) (model.Cursor, error) {
	if opts.MaxTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.MaxTime)
		defer cancel()
	}

	encoded := EncodePipeline(pipeline)
	c.logger.Debug("aggregate",
		"collection", c.coll.Name(),
		"stages", len(pipeline),
		"ops", pipeline.Ops(),
	)

	cur, err := c.coll.Aggregate(ctx, encoded, aggregateOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("mongostore: aggregate %s: %w", c.coll.Name(), err)
	}
	return &cursor{cur: cur}, nil
}

func aggregateOptions(o model.ExecOptions) *options.AggregateOptionsBuilder {
	opts := options.Aggregate()
	if o.AllowDiskUse {
		opts.SetAllowDiskUse(true)
	}
	if o.BatchSize > 0 {
		opts.SetBatchSize(o.BatchSize)
	}
	if o.Comment != "" {
		opts.SetComment(o.Comment)
	}
	if o.Hint != nil {
		opts.SetHint(EncodeValue(o.Hint))
	}
	return opts
}

// cursor adapts *mongo.Cursor to model.Cursor.
type cursor struct {
	cur *mongo.Cursor
}

func (c *cursor) Next(ctx context.Context) bool { return c.cur.Next(ctx) }

func (c *cursor) Document() (ir.Doc, error) {
	var m bson.M
	if err := c.cur.Decode(&m); err != nil {
		return nil, fmt.Errorf("mongostore: decode: %w", err)
	}
	return DecodeDocument(m), nil
}

func (c *cursor) Err() error { return c.cur.Err() }

func (c *cursor) Close(ctx context.Context) error { return c.cur.Close(ctx) }
