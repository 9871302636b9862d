package memstore

import (
	"fmt"
	"strings"

	"github.com/phantien133/active-aggregate/internal/ir"
)

// accumulator folds one output field of a group.
type accumulator interface {
	add(v any)
	result() any
}

func evalGroup(docs []ir.Doc, spec any) ([]ir.Doc, error) {
	gs, ok := ir.AsDoc(spec)
	if !ok {
		return nil, fmt.Errorf("$group: expected a document, got %T", spec)
	}
	idExpr, ok := gs["_id"]
	if !ok {
		return nil, fmt.Errorf("$group: _id is required")
	}

	type bucket struct {
		id   any
		accs map[string]accumulator
	}
	var order []string
	buckets := map[string]*bucket{}

	for _, d := range docs {
		id := evalExpr(d, idExpr)
		key, err := ir.MarshalCanonical(id)
		if err != nil {
			return nil, fmt.Errorf("$group: _id: %w", err)
		}
		b, ok := buckets[string(key)]
		if !ok {
			b = &bucket{id: id, accs: map[string]accumulator{}}
			for field, accSpec := range gs {
				if field == "_id" {
					continue
				}
				acc, err := newAccumulator(field, accSpec)
				if err != nil {
					return nil, err
				}
				b.accs[field] = acc
			}
			buckets[string(key)] = b
			order = append(order, string(key))
		}
		for field, acc := range b.accs {
			acc.add(evalExpr(d, accArg(gs[field])))
		}
	}

	out := make([]ir.Doc, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		d := ir.Doc{"_id": b.id}
		for field, acc := range b.accs {
			d[field] = acc.result()
		}
		out = append(out, d)
	}
	return out, nil
}

func accArg(spec any) any {
	d, _ := ir.AsDoc(spec)
	for _, arg := range d {
		return arg
	}
	return nil
}

func newAccumulator(field string, spec any) (accumulator, error) {
	d, ok := ir.AsDoc(spec)
	if !ok || len(d) != 1 {
		return nil, fmt.Errorf("$group: %s must be a single accumulator document", field)
	}
	for op := range d {
		switch op {
		case "$sum":
			return &sumAcc{allInt: true}, nil
		case "$count":
			return &countAcc{}, nil
		case "$avg":
			return &avgAcc{}, nil
		case "$min":
			return &extremeAcc{want: -1}, nil
		case "$max":
			return &extremeAcc{want: 1}, nil
		case "$first":
			return &firstAcc{}, nil
		case "$last":
			return &lastAcc{}, nil
		case "$push":
			return &pushAcc{values: []any{}}, nil
		case "$addToSet":
			return &setAcc{values: []any{}}, nil
		default:
			if strings.HasPrefix(op, "$") {
				return nil, fmt.Errorf("$group: %s: unsupported accumulator %s", field, op)
			}
			return nil, fmt.Errorf("$group: %s: accumulator must be an operator, got %s", field, op)
		}
	}
	panic("unreachable")
}

type sumAcc struct {
	total  float64
	allInt bool
}

func (a *sumAcc) add(v any) {
	f, ok := toFloat(v)
	if !ok {
		return
	}
	a.total += f
	a.allInt = a.allInt && isInteger(v)
}

func (a *sumAcc) result() any {
	if a.allInt {
		return int64(a.total)
	}
	return a.total
}

type countAcc struct{ n int64 }

func (a *countAcc) add(any)     { a.n++ }
func (a *countAcc) result() any { return a.n }

type avgAcc struct {
	total float64
	n     int
}

func (a *avgAcc) add(v any) {
	if f, ok := toFloat(v); ok {
		a.total += f
		a.n++
	}
}

func (a *avgAcc) result() any {
	if a.n == 0 {
		return nil
	}
	return a.total / float64(a.n)
}

// extremeAcc keeps the minimum (want -1) or maximum (want 1), ignoring nulls.
type extremeAcc struct {
	want int
	best any
}

func (a *extremeAcc) add(v any) {
	if v == nil {
		return
	}
	if a.best == nil || sortCompare(v, a.best) == a.want {
		a.best = v
	}
}

func (a *extremeAcc) result() any { return a.best }

type firstAcc struct {
	v   any
	set bool
}

func (a *firstAcc) add(v any) {
	if !a.set {
		a.v, a.set = v, true
	}
}

func (a *firstAcc) result() any { return a.v }

type lastAcc struct{ v any }

func (a *lastAcc) add(v any)    { a.v = v }
func (a *lastAcc) result() any { return a.v }

type pushAcc struct{ values []any }

func (a *pushAcc) add(v any)    { a.values = append(a.values, v) }
func (a *pushAcc) result() any { return a.values }

type setAcc struct{ values []any }

func (a *setAcc) add(v any) {
	for _, have := range a.values {
		if valuesEqual(have, v) {
			return
		}
	}
	a.values = append(a.values, v)
}

func (a *setAcc) result() any { return a.values }
