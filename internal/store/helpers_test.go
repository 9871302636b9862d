package store

import (
	"path/filepath"
	"testing"
	"time"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testStart = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

// createTestExecution creates an open execution with minimal required fields.
func createTestExecution(id, registry, fingerprint string) Execution {
	return Execution{
		ID:          id,
		Registry:    registry,
		Collection:  "orders",
		Fingerprint: fingerprint,
		Pipeline:    `[{"$match":{"status":"open"}}]`,
		StartedAt:   testStart,
	}
}
