package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// tempJournal returns a journal path in a fresh temp dir.
func tempJournal(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "journal.db")
}

var (
	ordersSpec     = filepath.Join("testdata", "specs", "orders.yaml")
	specsDir       = filepath.Join("testdata", "specs")
	ordersFixtures = filepath.Join("testdata", "fixtures", "orders.yaml")
)
