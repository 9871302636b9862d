package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileSpecBasic(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		aggregate: InvoiceAggregate: {
			collection: "billing_invoices"
			scope: unpaid: {
				match: paid: false
				sort: ["-due"]
				limit: 25
			}
			scope: for_customer: {
				arity: 1
				match: customer_id: "$1"
				uses: [{name: "unpaid"}]
			}
		}
	`)
	require.NoError(t, v.Err())

	spec, err := CompileSpec(v.LookupPath(cue.ParsePath("aggregate.InvoiceAggregate")))
	require.NoError(t, err)

	assert.Equal(t, "InvoiceAggregate", spec.Registry)
	assert.Equal(t, "billing_invoices", spec.CollectionName())
	assert.Equal(t, []string{"unpaid", "for_customer"}, spec.ScopeNames())

	unpaid := spec.Scopes[0]
	assert.Equal(t, map[string]any{"paid": false}, unpaid.Match)
	assert.Equal(t, []string{"-due"}, unpaid.Sort)
	assert.Equal(t, int64(25), unpaid.Limit)

	forCustomer := spec.Scopes[1]
	assert.Equal(t, 1, forCustomer.Arity)
	assert.Equal(t, []Use{{Name: "unpaid"}}, forCustomer.Uses)
	assert.Empty(t, Validate(spec))
}

func TestCompileSpecMissingScopes(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		aggregate: EmptyAggregate: {
			collection: "things"
		}
	`)
	require.NoError(t, v.Err())

	_, err := CompileSpec(v.LookupPath(cue.ParsePath("aggregate.EmptyAggregate")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scope")
	assert.Contains(t, err.Error(), "required")
}

func TestCompileSpecUnknownScopeField(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		aggregate: BadAggregate: {
			scope: x: { filter: a: 1 }
		}
	`)
	require.NoError(t, v.Err())

	_, err := CompileSpec(v.LookupPath(cue.ParsePath("aggregate.BadAggregate")))
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "scope.x", ce.Field)
	assert.Contains(t, ce.Message, "filter")
}

func TestCompileSpecFloatsSurvive(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		aggregate: PriceAggregate: {
			scope: cheap: match: price: "$lt": 9.5
		}
	`)
	require.NoError(t, v.Err())

	spec, err := CompileSpec(v.LookupPath(cue.ParsePath("aggregate.PriceAggregate")))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"price": map[string]any{"$lt": 9.5}}, spec.Scopes[0].Match)
}

func TestCompileSpecBadModelType(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		aggregate: OddAggregate: {
			model: 3
			scope: x: {}
		}
	`)
	require.NoError(t, v.Err())

	_, err := CompileSpec(v.LookupPath(cue.ParsePath("aggregate.OddAggregate")))
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "model", ce.Field)
}
