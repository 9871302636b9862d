package harness

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/phantien133/active-aggregate/internal/ir"
	"github.com/phantien133/active-aggregate/internal/scope"
)

// AssertionContext gives assertions that execute (count, pluck) access to
// the relation under test.
type AssertionContext struct {
	Ctx      context.Context
	Relation *scope.Relation
	Options  []scope.CompileOption
}

// AssertionError is returned when an assertion fails.
// It includes the compiled pipeline to help debug the failure.
type AssertionError struct {
	Type     string      // Assertion type for categorization
	Expected string      // Human-readable expected outcome
	Actual   string      // Human-readable actual outcome
	Pipeline ir.Pipeline // Compiled pipeline for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nPipeline:\n")
	for i, stage := range e.Pipeline {
		fmt.Fprintf(&buf, "  [%d] %s\n", i+1, stage.Op)
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages (does not fail-fast).
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertStageOrder:
		return assertStageOrder(result, a)
	case AssertStageCount:
		return assertNumber(result, a.Type, a.Count, len(result.Pipeline))
	case AssertResultCount:
		return assertNumber(result, a.Type, a.Count, len(result.Documents))
	case AssertCount:
		return assertCount(result, a, actx)
	case AssertPluck:
		return assertPluck(result, a, actx)
	case AssertError:
		return assertError(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertStageOrder(result *Result, a Assertion) error {
	got := result.Pipeline.Ops()
	if slices.Equal(got, a.Ops) {
		return nil
	}
	return &AssertionError{
		Type:     AssertStageOrder,
		Expected: fmt.Sprintf("%v", a.Ops),
		Actual:   fmt.Sprintf("%v", got),
		Pipeline: result.Pipeline,
	}
}

func assertNumber(result *Result, kind string, want, got int) error {
	if want == got {
		return nil
	}
	return &AssertionError{
		Type:     kind,
		Expected: fmt.Sprintf("%d", want),
		Actual:   fmt.Sprintf("%d", got),
		Pipeline: result.Pipeline,
	}
}

func assertCount(result *Result, a Assertion, actx *AssertionContext) error {
	if actx == nil || actx.Relation == nil {
		return fmt.Errorf("count: no relation to execute")
	}
	n, err := actx.Relation.Count(actx.Ctx, actx.Options...)
	if err != nil {
		return fmt.Errorf("count: %w", err)
	}
	return assertNumber(result, AssertCount, a.Count, int(n))
}

func assertPluck(result *Result, a Assertion, actx *AssertionContext) error {
	if actx == nil || actx.Relation == nil {
		return fmt.Errorf("pluck: no relation to execute")
	}
	got, err := actx.Relation.Pluck(actx.Ctx, a.Field)
	if err != nil {
		return fmt.Errorf("pluck: %w", err)
	}
	want := a.Values
	if want == nil {
		want = []any{}
	}
	same, err := sameValues(want, got)
	if err != nil {
		return fmt.Errorf("pluck: %w", err)
	}
	if same {
		return nil
	}
	return &AssertionError{
		Type:     AssertPluck,
		Expected: fmt.Sprintf("%s = %v", a.Field, want),
		Actual:   fmt.Sprintf("%s = %v", a.Field, got),
		Pipeline: result.Pipeline,
	}
}

func assertError(result *Result, a Assertion) error {
	if result.Error != "" && strings.Contains(result.Error, a.Contains) {
		return nil
	}
	actual := result.Error
	if actual == "" {
		actual = "no error"
	}
	return &AssertionError{
		Type:     AssertError,
		Expected: fmt.Sprintf("error containing %q", a.Contains),
		Actual:   actual,
		Pipeline: result.Pipeline,
	}
}

// sameValues compares through canonical JSON so that numbers decoded as
// int, int64 or float64 compare equal.
func sameValues(want, got []any) (bool, error) {
	w, err := ir.MarshalCanonical(want)
	if err != nil {
		return false, err
	}
	g, err := ir.MarshalCanonical(got)
	if err != nil {
		return false, err
	}
	return bytes.Equal(w, g), nil
}
