package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/phantien133/active-aggregate/internal/ir"
)

// Snapshot is the golden form of a scenario run.
type Snapshot struct {
	Scenario  string
	Pipeline  ir.Pipeline
	Documents []ir.Doc
}

// canonicalMap converts s for ir.MarshalCanonical.
func (s *Snapshot) canonicalMap() map[string]any {
	docs := make([]any, len(s.Documents))
	for i, d := range s.Documents {
		docs[i] = d
	}
	return map[string]any{
		"scenario":  s.Scenario,
		"pipeline":  s.Pipeline,
		"documents": docs,
	}
}

// MarshalSnapshot renders the canonical JSON of a result.
func MarshalSnapshot(name string, result *Result) ([]byte, error) {
	snap := Snapshot{
		Scenario:  name,
		Pipeline:  result.Pipeline,
		Documents: result.Documents,
	}
	return ir.MarshalCanonical(snap.canonicalMap())
}

// RunWithGolden executes a scenario and compares the compiled pipeline and
// results against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
