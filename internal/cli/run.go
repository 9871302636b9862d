package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/phantien133/active-aggregate/internal/compiler"
	"github.com/phantien133/active-aggregate/internal/ir"
	"github.com/phantien133/active-aggregate/internal/memstore"
	"github.com/phantien133/active-aggregate/internal/model"
	"github.com/phantien133/active-aggregate/internal/mongostore"
	"github.com/phantien133/active-aggregate/internal/scope"
	"github.com/phantien133/active-aggregate/internal/store"
)

// maxParallelScopes bounds concurrent aggregations in one run.
const maxParallelScopes = 4

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Registry  string
	Scopes    []string
	Fixtures  string
	SelectAll bool
	Limit     int64
	Count     bool
	NoJournal bool
}

// RunResult is the outcome of one scope.
type RunResult struct {
	Registry    string      `json:"registry"`
	Scope       string      `json:"scope"`
	Args        []any       `json:"args,omitempty"`
	Fingerprint string      `json:"fingerprint"`
	Pipeline    ir.Pipeline `json:"pipeline"`
	Count       *int64      `json:"count,omitempty"`
	Documents   []ir.Doc    `json:"documents,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <specs>",
		Short: "Execute scopes against a collection",
		Long: `Execute one or more scopes and print their results.

Documents come from --fixtures (a YAML file keyed by collection name,
evaluated in memory) or from MongoDB (mongo_uri and database). Scopes run
concurrently; every pipeline sent is recorded in the execution journal
unless --no-journal is given.

Examples:
  aggscope run ./specs --scope open --fixtures fixtures.yaml
  aggscope run ./specs --registry OrderAggregate --scope since:2024-03-01 --scope by_status
  AGGSCOPE_MONGO_URI=mongodb://localhost:27017 aggscope run ./specs --database shop --scope open --count`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScopes(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Registry, "registry", "", "registry to query (optional with a single registry)")
	cmd.Flags().StringArrayVar(&opts.Scopes, "scope", nil, "scope to run, as name or name:arg1,arg2 (repeatable, required)")
	_ = cmd.MarkFlagRequired("scope")
	cmd.Flags().StringVar(&opts.Fixtures, "fixtures", "", "fixtures file to evaluate in memory instead of MongoDB")
	cmd.Flags().BoolVar(&opts.SelectAll, "select-all", false, "derive a projection from the match fields")
	cmd.Flags().Int64Var(&opts.Limit, "limit", 0, "limit applied after each scope (0 keeps the scope's limit)")
	cmd.Flags().BoolVar(&opts.Count, "count", false, "print result counts instead of documents")
	cmd.Flags().BoolVar(&opts.NoJournal, "no-journal", false, "do not record executions")

	return cmd
}

func runScopes(opts *RunOptions, specsPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	cfg := opts.settings()
	logger := opts.logger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	calls := make([]scopeCall, 0, len(opts.Scopes))
	for _, raw := range opts.Scopes {
		call, err := parseScopeCall(raw)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "parsing --scope", err)
		}
		calls = append(calls, call)
	}

	specs, err := loadSpecs(specsPath, cfg.Suffix)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoadFailed, "loading specs", err)
	}

	source, closeSource, err := openSource(ctx, opts, logger)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "opening data source", err)
	}
	defer closeSource()

	collections := source
	if !opts.NoJournal {
		st, err := openJournal(cfg.Journal)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, "opening journal", err)
		}
		defer st.Close()
		formatter.VerboseLog("Journaling executions to %s", cfg.Journal)

		collections = func(spec *compiler.Spec) (model.Collection, error) {
			coll, err := source(spec)
			if err != nil {
				return nil, err
			}
			return st.Journal(coll, store.WithRegistry(spec.Registry), store.WithLogger(logger)), nil
		}
	}

	ws, err := buildWorkspace(specs, collections)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBuildFailed, "building registries", err)
	}
	reg, err := ws.registry(opts.Registry)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBuildFailed, "selecting registry", err)
	}

	var compileOpts []scope.CompileOption
	if opts.SelectAll {
		compileOpts = append(compileOpts, scope.SelectAll())
	}
	if cfg.MaxTime > 0 {
		compileOpts = append(compileOpts, scope.WithExec(model.WithMaxTime(cfg.MaxTime)))
	}

	results := make([]RunResult, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelScopes)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			r, err := runScope(gctx, reg, call, opts, compileOpts)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", reg.Name(), call, err)
			}
			logger.Info("scope executed", "registry", reg.Name(), "scope", call.Name, "fingerprint", shortFingerprint(r.Fingerprint))
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeExecute, "running scopes", err)
	}

	if opts.Format == "json" {
		return formatter.Success(results)
	}
	return outputRunText(formatter, results)
}

// runScope compiles and executes one scope.
func runScope(ctx context.Context, reg *scope.Registry, call scopeCall, opts *RunOptions, compileOpts []scope.CompileOption) (RunResult, error) {
	rel := reg.Scope(call.Name, call.Args...)
	if opts.Limit != 0 {
		rel = rel.Limit(opts.Limit)
	}

	p, err := rel.Compile(compileOpts...)
	if err != nil {
		return RunResult{}, err
	}
	fp, err := ir.Fingerprint(p)
	if err != nil {
		return RunResult{}, err
	}
	r := RunResult{
		Registry:    reg.Name(),
		Scope:       call.Name,
		Args:        call.Args,
		Fingerprint: fp,
		Pipeline:    p,
	}

	if opts.Count {
		n, err := rel.Count(ctx, compileOpts...)
		if err != nil {
			return RunResult{}, err
		}
		r.Count = &n
		return r, nil
	}

	cur, err := rel.Aggregate(ctx, compileOpts...)
	if err != nil {
		return RunResult{}, err
	}
	docs, err := model.Drain(ctx, cur)
	if err != nil {
		return RunResult{}, err
	}
	r.Documents = docs
	return r, nil
}

// openSource returns the collection factory for fixtures or MongoDB, and a
// function releasing it.
func openSource(ctx context.Context, opts *RunOptions, logger *slog.Logger) (collectionFunc, func(), error) {
	cfg := opts.settings()

	if opts.Fixtures != "" {
		fixtures, err := memstore.LoadFixtures(opts.Fixtures)
		if err != nil {
			return nil, nil, err
		}
		return func(spec *compiler.Spec) (model.Collection, error) {
			name := spec.CollectionName()
			return memstore.New(name, fixtures[name]...), nil
		}, func() {}, nil
	}

	if cfg.MongoURI == "" {
		return nil, nil, fmt.Errorf("no data source: pass --fixtures or set mongo_uri")
	}
	if cfg.Database == "" {
		return nil, nil, fmt.Errorf("database is required with mongo_uri")
	}
	client, err := mongostore.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("connected to mongodb", "database", cfg.Database)

	collections := func(spec *compiler.Spec) (model.Collection, error) {
		return mongostore.Open(client, cfg.Database, spec.CollectionName(), mongostore.WithLogger(logger)), nil
	}
	return collections, func() { _ = client.Disconnect(context.Background()) }, nil
}

// openJournal opens the journal, creating its directory if needed.
func openJournal(path string) (*store.Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create journal directory: %w", err)
			}
		}
	}
	return store.Open(path)
}

// outputRunText prints each scope's pipeline summary and results.
func outputRunText(formatter *OutputFormatter, results []RunResult) error {
	w := formatter.Writer
	for _, r := range results {
		call := scopeCall{Name: r.Scope, Args: r.Args}
		fmt.Fprintf(w, "✓ %s.%s  %s  %v\n", r.Registry, call, shortFingerprint(r.Fingerprint), r.Pipeline.Ops())

		if r.Count != nil {
			fmt.Fprintf(w, "  count: %d\n\n", *r.Count)
			continue
		}
		fmt.Fprintf(w, "  %d document(s)\n", len(r.Documents))
		for _, d := range r.Documents {
			data, err := ir.MarshalCanonical(d)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "  %s\n", data)
		}
		fmt.Fprintln(w)
	}
	return nil
}
