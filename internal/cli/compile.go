package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/phantien133/active-aggregate/internal/compiler"
	"github.com/phantien133/active-aggregate/internal/ir"
	"github.com/phantien133/active-aggregate/internal/memstore"
	"github.com/phantien133/active-aggregate/internal/model"
	"github.com/phantien133/active-aggregate/internal/scope"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Registry  string
	Scopes    []string
	SelectAll bool
	Output    string // output file path
}

// CompiledScope is one compiled relation.
type CompiledScope struct {
	Registry    string      `json:"registry"`
	Scope       string      `json:"scope"`
	Args        []any       `json:"args,omitempty"`
	Fingerprint string      `json:"fingerprint"`
	Pipeline    ir.Pipeline `json:"pipeline"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <specs>",
		Short: "Compile scopes to aggregation pipelines",
		Long: `Compile scope specs (a YAML/CUE file or a directory) to aggregation
pipelines without touching a database.

Without --scope, every scope that takes no arguments is compiled. A scope
with arguments is given as name:arg1,arg2; arguments are YAML scalars.

Examples:
  aggscope compile ./specs
  aggscope compile ./specs --registry OrderAggregate --scope since:2024-03-01
  aggscope compile ./specs --scope top:5 --format json -o pipelines.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Registry, "registry", "", "registry to compile (default all)")
	cmd.Flags().StringArrayVar(&opts.Scopes, "scope", nil, "scope to compile, as name or name:arg1,arg2 (repeatable)")
	cmd.Flags().BoolVar(&opts.SelectAll, "select-all", false, "derive a projection from the match fields")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, specsPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	specs, err := loadSpecs(specsPath, opts.settings().Suffix)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoadFailed, "loading specs", err)
	}
	formatter.VerboseLog("Loaded %d registry spec(s) from %s", len(specs), specsPath)

	ws, err := buildWorkspace(specs, func(spec *compiler.Spec) (model.Collection, error) {
		return memstore.New(spec.CollectionName()), nil
	})
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBuildFailed, "building registries", err)
	}

	var compileOpts []scope.CompileOption
	if opts.SelectAll {
		compileOpts = append(compileOpts, scope.SelectAll())
	}

	targets, err := compileTargets(ws, opts)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeCompile, "selecting scopes", err)
	}

	results := make([]CompiledScope, 0, len(targets))
	for _, t := range targets {
		formatter.VerboseLog("Compiling %s.%s", t.registry.Name(), t.call)
		rel := t.registry.Scope(t.call.Name, t.call.Args...)
		p, err := rel.Compile(compileOpts...)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeCompile, fmt.Sprintf("compiling %s.%s", t.registry.Name(), t.call), err)
		}
		fp, err := ir.Fingerprint(p)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeCompile, fmt.Sprintf("fingerprinting %s.%s", t.registry.Name(), t.call), err)
		}
		results = append(results, CompiledScope{
			Registry:    t.registry.Name(),
			Scope:       t.call.Name,
			Args:        t.call.Args,
			Fingerprint: fp,
			Pipeline:    p,
		})
	}

	if opts.Output != "" {
		if err := writeCompiled(results, opts.Output); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "writing output file", err)
		}
	}

	if opts.Format == "json" {
		return formatter.Success(results)
	}
	return outputCompileText(formatter, results, opts.Output)
}

type compileTarget struct {
	registry *scope.Registry
	call     scopeCall
}

// compileTargets resolves --registry and --scope into the relations to
// compile, in registry then scope order.
func compileTargets(ws *workspace, opts *CompileOptions) ([]compileTarget, error) {
	if len(opts.Scopes) > 0 {
		reg, err := ws.registry(opts.Registry)
		if err != nil {
			return nil, err
		}
		targets := make([]compileTarget, 0, len(opts.Scopes))
		for _, raw := range opts.Scopes {
			call, err := parseScopeCall(raw)
			if err != nil {
				return nil, err
			}
			targets = append(targets, compileTarget{registry: reg, call: call})
		}
		return targets, nil
	}

	var targets []compileTarget
	for _, spec := range ws.specs {
		if opts.Registry != "" && spec.Registry != opts.Registry {
			continue
		}
		reg := ws.registries[spec.Registry]
		for i := range spec.Scopes {
			if spec.Scopes[i].Params() > 0 {
				continue
			}
			targets = append(targets, compileTarget{registry: reg, call: scopeCall{Name: spec.Scopes[i].Name}})
		}
	}
	if opts.Registry != "" && targets == nil {
		if _, err := ws.registry(opts.Registry); err != nil {
			return nil, err
		}
	}
	return targets, nil
}

// outputCompileText prints each compiled scope with one stage per line.
func outputCompileText(formatter *OutputFormatter, results []CompiledScope, outputFile string) error {
	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d scope(s)\n\n", len(results))

	for _, r := range results {
		call := scopeCall{Name: r.Scope, Args: r.Args}
		fmt.Fprintf(w, "%s.%s  %s\n", r.Registry, call, shortFingerprint(r.Fingerprint))
		if len(r.Pipeline) == 0 {
			fmt.Fprintln(w, "  (empty pipeline)")
		}
		for _, stage := range r.Pipeline {
			spec, err := ir.MarshalCanonical(stage.Spec)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "  %-11s %s\n", stage.Op, spec)
		}
		fmt.Fprintln(w)
	}

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote pipelines to %s\n", outputFile)
	}
	return nil
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

// writeCompiled writes the results as indented JSON.
func writeCompiled(results []CompiledScope, filename string) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling pipelines: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
