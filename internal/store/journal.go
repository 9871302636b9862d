package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phantien133/active-aggregate/internal/ir"
	"github.com/phantien133/active-aggregate/internal/model"
)

// IDGenerator produces execution ids.
type IDGenerator interface {
	Generate() string
}

// Clock supplies journal timestamps.
type Clock interface {
	Now() time.Time
}

type uuidV7Generator struct{}

func (uuidV7Generator) Generate() string { return uuid.Must(uuid.NewV7()).String() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// JournaledCollection decorates a collection so that every Aggregate call is
// written to the store. The execution row is opened before the pipeline is
// sent and finished when the returned cursor is closed.
type JournaledCollection struct {
	store    *Store
	inner    model.Collection
	registry string
	ids      IDGenerator
	clock    Clock
	logger   *slog.Logger
}

var _ model.Collection = (*JournaledCollection)(nil)

// JournalOption configures a JournaledCollection.
type JournalOption func(*JournaledCollection)

// WithRegistry labels executions with the registry that compiled them.
func WithRegistry(name string) JournalOption {
	return func(j *JournaledCollection) { j.registry = name }
}

// WithIDGenerator overrides the default UUIDv7 ids.
func WithIDGenerator(g IDGenerator) JournalOption {
	return func(j *JournaledCollection) { j.ids = g }
}

// WithClock overrides the wall clock.
func WithClock(c Clock) JournalOption {
	return func(j *JournaledCollection) { j.clock = c }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) JournalOption {
	return func(j *JournaledCollection) { j.logger = l }
}

// Journal wraps inner so its executions are recorded in s.
func (s *Store) Journal(inner model.Collection, opts ...JournalOption) *JournaledCollection {
	j := &JournaledCollection{
		store:  s,
		inner:  inner,
		ids:    uuidV7Generator{},
		clock:  systemClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *JournaledCollection) Name() string { return j.inner.Name() }

// Aggregate records the pipeline and delegates to the wrapped collection.
// Journal write failures are logged and never fail the aggregation.
func (j *JournaledCollection) Aggregate(ctx context.Context, pipeline ir.Pipeline, opts model.ExecOptions) (model.Cursor, error) {
	id := j.ids.Generate()
	canonical, err := ir.MarshalCanonical(pipeline)
	if err != nil {
		return nil, err
	}
	fp, err := ir.Fingerprint(pipeline)
	if err != nil {
		return nil, err
	}

	exec := Execution{
		ID:          id,
		Registry:    j.registry,
		Collection:  j.inner.Name(),
		Fingerprint: fp,
		Pipeline:    string(canonical),
		StartedAt:   j.clock.Now(),
	}
	if err := j.store.WriteExecution(ctx, exec); err != nil {
		j.logger.Warn("journal write failed", "id", id, "error", err)
	}
	j.logger.Debug("execution started",
		"id", id,
		"collection", exec.Collection,
		"fingerprint", fp,
	)

	cur, err := j.inner.Aggregate(ctx, pipeline, opts)
	if err != nil {
		j.finish(ctx, id, 0, err)
		return nil, err
	}
	return &journaledCursor{journal: j, id: id, inner: cur}, nil
}

func (j *JournaledCollection) finish(ctx context.Context, id string, count int64, cause error) {
	var errText string
	if cause != nil {
		errText = cause.Error()
	}
	if err := j.store.FinishExecution(context.WithoutCancel(ctx), id, j.clock.Now(), count, errText); err != nil {
		j.logger.Warn("journal finish failed", "id", id, "error", err)
		return
	}
	j.logger.Debug("execution finished", "id", id, "results", count, "error", errText)
}

// journaledCursor counts the documents handed out and closes the execution
// on Close.
type journaledCursor struct {
	journal *JournaledCollection
	id      string
	inner   model.Cursor
	count   int64
	closed  bool
}

func (c *journaledCursor) Next(ctx context.Context) bool {
	if c.inner.Next(ctx) {
		c.count++
		return true
	}
	return false
}

func (c *journaledCursor) Document() (ir.Doc, error) { return c.inner.Document() }

func (c *journaledCursor) Err() error { return c.inner.Err() }

func (c *journaledCursor) Close(ctx context.Context) error {
	err := c.inner.Close(ctx)
	if c.closed {
		return err
	}
	c.closed = true
	cause := c.inner.Err()
	if cause == nil {
		cause = err
	}
	c.journal.finish(ctx, c.id, c.count, cause)
	return err
}
