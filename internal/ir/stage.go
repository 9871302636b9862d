package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Stage operators emitted by the compiler.
const (
	OpMatch   = "$match"
	OpGroup   = "$group"
	OpSort    = "$sort"
	OpProject = "$project"
	OpLimit   = "$limit"
)

// Stage is one pipeline step: a single operator and its specification.
type Stage struct {
	Op   string
	Spec any
}

// Pipeline is an ordered list of stages, executed verbatim by the store.
type Pipeline []Stage

func MatchStage(selector Doc) Stage { return Stage{Op: OpMatch, Spec: selector} }
func GroupStage(spec Doc) Stage     { return Stage{Op: OpGroup, Spec: spec} }
func SortStage(s Sort) Stage        { return Stage{Op: OpSort, Spec: s} }
func ProjectStage(spec Doc) Stage   { return Stage{Op: OpProject, Spec: spec} }
func LimitStage(n int64) Stage      { return Stage{Op: OpLimit, Spec: n} }

// CustomStage builds an arbitrary stage. The operator gets a "$" prefix if
// it lacks one.
func CustomStage(op string, spec any) Stage {
	if !strings.HasPrefix(op, "$") {
		op = "$" + op
	}
	return Stage{Op: op, Spec: spec}
}

// StageFromDoc converts a single-key document such as {"$unwind": "$items"}
// into a Stage.
func StageFromDoc(d Doc) (Stage, error) {
	if len(d) != 1 {
		return Stage{}, fmt.Errorf("stage must have exactly one operator, got %d keys", len(d))
	}
	for op, spec := range d {
		if !strings.HasPrefix(op, "$") {
			return Stage{}, fmt.Errorf("stage operator %q must start with '$'", op)
		}
		return Stage{Op: op, Spec: cloneValue(spec)}, nil
	}
	panic("unreachable")
}

// Doc returns the stage as a single-key document.
func (s Stage) Doc() Doc {
	return Doc{s.Op: s.Spec}
}

// MarshalJSON renders {"<op>": spec}.
func (s Stage) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	op, err := json.Marshal(s.Op)
	if err != nil {
		return nil, err
	}
	spec, err := json.Marshal(s.Spec)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", s.Op, err)
	}
	buf.WriteByte('{')
	buf.Write(op)
	buf.WriteByte(':')
	buf.Write(spec)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Ops returns the operator of each stage in order.
func (p Pipeline) Ops() []string {
	out := make([]string, len(p))
	for i, s := range p {
		out[i] = s.Op
	}
	return out
}

// Clone returns a deep copy of p.
func (p Pipeline) Clone() Pipeline {
	if p == nil {
		return nil
	}
	out := make(Pipeline, len(p))
	for i, s := range p {
		out[i] = Stage{Op: s.Op, Spec: cloneValue(s.Spec)}
	}
	return out
}

// Concat returns a fresh pipeline holding p's stages followed by other's.
func (p Pipeline) Concat(other Pipeline) Pipeline {
	if len(p) == 0 && len(other) == 0 {
		return nil
	}
	out := make(Pipeline, 0, len(p)+len(other))
	out = append(out, p.Clone()...)
	return append(out, other.Clone()...)
}
