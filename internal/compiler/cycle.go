package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// UsesCycle is a set of scopes that reach each other through uses.
type UsesCycle struct {
	Path    []string `json:"path"`    // ["a", "b", "a"]
	Message string   `json:"message"` // Human-readable description
}

// AnalyzeUses finds cycles in the uses graph of spec.
//
// The algorithm:
//  1. Build scope → used scopes graph
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops as a cycle
//
// A DAG returns an empty list. Uses of undefined scopes are ignored here.
func AnalyzeUses(spec *Spec) []UsesCycle {
	graph := buildUsesGraph(spec)
	if len(graph) == 0 {
		return []UsesCycle{}
	}

	cycles := []UsesCycle{}
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			cycles = append(cycles, sccToCycle(scc, graph))
		}
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i].Path[0] < cycles[j].Path[0] })
	return cycles
}

// usesGraph maps scope name → names of scopes it uses.
type usesGraph map[string][]string

func buildUsesGraph(spec *Spec) usesGraph {
	graph := make(usesGraph, len(spec.Scopes))
	defined := make(map[string]bool, len(spec.Scopes))
	for _, sc := range spec.Scopes {
		defined[sc.Name] = true
	}
	for _, sc := range spec.Scopes {
		if graph[sc.Name] == nil {
			graph[sc.Name] = []string{}
		}
		for _, u := range sc.Uses {
			if defined[u.Name] {
				graph[sc.Name] = append(graph[sc.Name], u.Name)
			}
		}
	}
	return graph
}

func hasSelfLoop(node string, graph usesGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order so results are deterministic.
func tarjanSCC(graph usesGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack into an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

func sccToCycle(scc []string, graph usesGraph) UsesCycle {
	sorted := append([]string(nil), scc...)
	sort.Strings(sorted)

	if len(sorted) == 1 {
		name := sorted[0]
		return UsesCycle{
			Path:    []string{name, name},
			Message: fmt.Sprintf("scope uses itself: %s → %s", name, name),
		}
	}

	path := reconstructCyclePath(sorted, graph)
	return UsesCycle{
		Path:    path,
		Message: fmt.Sprintf("scopes use each other: %s", strings.Join(path, " → ")),
	}
}

// reconstructCyclePath starts at the first SCC member and follows edges to
// other members until it returns to the start.
func reconstructCyclePath(scc []string, graph usesGraph) []string {
	member := make(map[string]bool, len(scc))
	for _, node := range scc {
		member[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if member[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
