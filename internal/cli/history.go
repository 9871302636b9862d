package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/phantien133/active-aggregate/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Registry    string
	Fingerprint string
	Limit       int
	Pipelines   bool
}

// HistoryEntry is one journaled execution.
type HistoryEntry struct {
	Seq         int64           `json:"seq"`
	ID          string          `json:"id"`
	Registry    string          `json:"registry"`
	Collection  string          `json:"collection"`
	Fingerprint string          `json:"fingerprint"`
	Pipeline    json.RawMessage `json:"pipeline,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	DurationMS  float64         `json:"duration_ms"`
	Done        bool            `json:"done"`
	ResultCount int64           `json:"result_count"`
	Error       string          `json:"error,omitempty"`
}

// HistoryResult holds the history output.
type HistoryResult struct {
	Journal    string         `json:"journal"`
	Executions []HistoryEntry `json:"executions"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled executions",
		Long: `List pipelines recorded in the execution journal, oldest first.

Repeated runs of the same relation share a fingerprint, so --fingerprint
shows every run of one pipeline.

Examples:
  aggscope history
  aggscope history --registry OrderAggregate --limit 5
  aggscope history --fingerprint 3f2a9c... --pipelines --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Registry, "registry", "", "only executions of this registry")
	cmd.Flags().StringVar(&opts.Fingerprint, "fingerprint", "", "only executions of this pipeline fingerprint")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "most recent executions to show (0 for all)")
	cmd.Flags().BoolVar(&opts.Pipelines, "pipelines", false, "include the canonical pipeline of each execution")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	journal := opts.settings().Journal

	if _, err := os.Stat(journal); errors.Is(err, fs.ErrNotExist) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("journal not found: %s", journal), nil)
	}

	st, err := store.Open(journal)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "opening journal", err)
	}
	defer st.Close()

	execs, err := st.ReadExecutions(cmd.Context(), store.ExecutionFilter{
		Registry:    opts.Registry,
		Fingerprint: opts.Fingerprint,
		Limit:       opts.Limit,
	})
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "reading journal", err)
	}

	result := HistoryResult{Journal: journal, Executions: make([]HistoryEntry, len(execs))}
	for i, e := range execs {
		result.Executions[i] = historyEntry(e, opts.Pipelines)
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return outputHistoryText(formatter, result, opts.Pipelines)
}

func historyEntry(e store.Execution, withPipeline bool) HistoryEntry {
	h := HistoryEntry{
		Seq:         e.Seq,
		ID:          e.ID,
		Registry:    e.Registry,
		Collection:  e.Collection,
		Fingerprint: e.Fingerprint,
		StartedAt:   e.StartedAt,
		DurationMS:  float64(e.Duration()) / float64(time.Millisecond),
		Done:        e.Done(),
		ResultCount: e.ResultCount,
		Error:       e.Error,
	}
	if withPipeline && e.Pipeline != "" {
		h.Pipeline = json.RawMessage(e.Pipeline)
	}
	return h
}

// outputHistoryText prints one line per execution.
func outputHistoryText(formatter *OutputFormatter, result HistoryResult, withPipeline bool) error {
	w := formatter.Writer
	if len(result.Executions) == 0 {
		fmt.Fprintf(w, "No executions recorded in %s\n", result.Journal)
		return nil
	}

	for _, e := range result.Executions {
		status := "✓"
		switch {
		case e.Error != "":
			status = "✗"
		case !e.Done:
			status = "…"
		}
		fmt.Fprintf(w, "%s %4d  %s  %-20s %-16s %s  %d doc(s)  %.1fms\n",
			status, e.Seq, e.StartedAt.Format(time.RFC3339), e.Registry, e.Collection,
			shortFingerprint(e.Fingerprint), e.ResultCount, e.DurationMS)
		if e.Error != "" {
			fmt.Fprintf(w, "        error: %s\n", e.Error)
		}
		if withPipeline && len(e.Pipeline) > 0 {
			fmt.Fprintf(w, "        %s\n", e.Pipeline)
		}
	}
	return nil
}
