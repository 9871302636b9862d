package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileSpec parses a CUE value into a Spec. The registry name is the
// value's label:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`aggregate: OrderAggregate: { scope: open: match: status: "open" }`)
//	spec, err := CompileSpec(v.LookupPath(cue.ParsePath("aggregate.OrderAggregate")))
func CompileSpec(v cue.Value) (*Spec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &Spec{Source: v.Pos().Filename()}
	if labels := v.Path().Selectors(); len(labels) > 0 {
		spec.Registry = labels[len(labels)-1].String()
	}

	var err error
	if spec.Model, err = optionalString(v, "model"); err != nil {
		return nil, err
	}
	if spec.Collection, err = optionalString(v, "collection"); err != nil {
		return nil, err
	}
	if spec.Suffix, err = optionalString(v, "suffix"); err != nil {
		return nil, err
	}
	if cacheVal := v.LookupPath(cue.ParsePath("cache")); cacheVal.Exists() {
		if spec.Cache, err = cacheVal.Bool(); err != nil {
			return nil, formatCUEError(err)
		}
	}

	scopesVal := v.LookupPath(cue.ParsePath("scope"))
	if !scopesVal.Exists() {
		return nil, &CompileError{
			Field:   "scope",
			Message: "at least one scope is required",
			Pos:     v.Pos(),
		}
	}
	iter, err := scopesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		sc, err := compileScope(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		spec.Scopes = append(spec.Scopes, sc)
	}

	return spec, nil
}

// compileScope decodes one scope through JSON so numbers keep their integer
// form and unknown fields are rejected.
func compileScope(name string, v cue.Value) (ScopeSpec, error) {
	raw, err := v.MarshalJSON()
	if err != nil {
		return ScopeSpec{}, formatCUEError(err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	dec.DisallowUnknownFields()

	var sc ScopeSpec
	if err := dec.Decode(&sc); err != nil {
		return ScopeSpec{}, &CompileError{
			Field:   "scope." + name,
			Message: err.Error(),
			Pos:     v.Pos(),
		}
	}
	if sc.Name != "" && sc.Name != name {
		return ScopeSpec{}, &CompileError{
			Field:   "scope." + name,
			Message: fmt.Sprintf("name %q does not match label", sc.Name),
			Pos:     v.Pos(),
		}
	}
	sc.Name = name

	sc.Match = normalizeNumbers(sc.Match).(map[string]any)
	sc.Group = normalizeNumbers(sc.Group).(map[string]any)
	sc.Project = normalizeNumbers(sc.Project).(map[string]any)
	sc.Limit = normalizeNumbers(sc.Limit)
	for i := range sc.Pipeline {
		sc.Pipeline[i] = normalizeNumbers(sc.Pipeline[i]).(map[string]any)
	}
	for i := range sc.Uses {
		if sc.Uses[i].Args != nil {
			sc.Uses[i].Args = normalizeNumbers(sc.Uses[i].Args).([]any)
		}
	}
	return sc, nil
}

// normalizeNumbers converts json.Number to int64 where integral and float64
// otherwise. Container types are preserved.
func normalizeNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		f, _ := val.Float64()
		return f
	case map[string]any:
		if val == nil {
			return val
		}
		for k, elem := range val {
			val[k] = normalizeNumbers(elem)
		}
		return val
	case []any:
		for i, elem := range val {
			val[i] = normalizeNumbers(elem)
		}
		return val
	default:
		return v
	}
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{
			Field:   field,
			Message: "must be a string",
			Pos:     fv.Pos(),
		}
	}
	return s, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
