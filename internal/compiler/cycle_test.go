package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usesSpec(edges map[string][]string, order ...string) *Spec {
	spec := &Spec{Registry: "TestAggregate"}
	for _, name := range order {
		sc := ScopeSpec{Name: name}
		for _, u := range edges[name] {
			sc.Uses = append(sc.Uses, Use{Name: u})
		}
		spec.Scopes = append(spec.Scopes, sc)
	}
	return spec
}

func TestAnalyzeUses_Empty(t *testing.T) {
	assert.Empty(t, AnalyzeUses(&Spec{}))
}

func TestAnalyzeUses_DAG(t *testing.T) {
	spec := usesSpec(map[string][]string{
		"a": {"b", "c"},
		"b": {"c"},
	}, "a", "b", "c")
	assert.Empty(t, AnalyzeUses(spec))
}

func TestAnalyzeUses_SelfLoop(t *testing.T) {
	spec := usesSpec(map[string][]string{"a": {"a"}}, "a")

	cycles := AnalyzeUses(spec)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"a", "a"}, cycles[0].Path)
	assert.Contains(t, cycles[0].Message, "uses itself")
}

func TestAnalyzeUses_ThreeCycle(t *testing.T) {
	spec := usesSpec(map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {"a"},
		"d": {"a"},
	}, "d", "c", "b", "a")

	cycles := AnalyzeUses(spec)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"a", "b", "c", "a"}, cycles[0].Path)
	assert.Equal(t, "scopes use each other: a → b → c → a", cycles[0].Message)
}

func TestAnalyzeUses_TwoSeparateCycles(t *testing.T) {
	spec := usesSpec(map[string][]string{
		"x": {"y"},
		"y": {"x"},
		"m": {"m"},
	}, "x", "y", "m")

	cycles := AnalyzeUses(spec)
	require.Len(t, cycles, 2)
	assert.Equal(t, "m", cycles[0].Path[0])
	assert.Equal(t, "x", cycles[1].Path[0])
}

func TestAnalyzeUses_IgnoresUndefined(t *testing.T) {
	spec := usesSpec(map[string][]string{"a": {"ghost"}}, "a")
	assert.Empty(t, AnalyzeUses(spec))
}
