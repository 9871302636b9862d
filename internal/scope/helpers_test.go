package scope

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/phantien133/active-aggregate/internal/ir"
	"github.com/phantien133/active-aggregate/internal/model"
	"github.com/phantien133/active-aggregate/internal/testutil"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

// newOrders returns a registry bound to an "orders" recording collection
// with the recent, open and high scopes defined.
func newOrders(t *testing.T, opts ...Option) (*Registry, *testutil.RecordingCollection) {
	t.Helper()
	coll := testutil.NewRecordingCollection("orders")
	opts = append([]Option{WithModel(model.New("Order", coll))}, opts...)
	reg := NewRegistry("OrderAggregate", opts...)

	_, err := reg.Define("recent", func(_ *Registry, args ...any) (any, error) {
		days := 7
		if len(args) > 0 {
			days = args[0].(int)
		}
		cutoff := testNow.AddDate(0, 0, -days)
		return Query{
			Criteria: reg.mustModel(t).Where(ir.Doc{"createdAt": ir.Doc{"$gte": cutoff}}),
			Sort:     ir.By("createdAt", ir.Desc),
			Limit:    10,
		}, nil
	})
	require.NoError(t, err)

	_, err = reg.Define("open", func(_ *Registry, _ ...any) (any, error) {
		return Query{Criteria: reg.mustModel(t).Where(ir.Doc{"status": "open"})}, nil
	})
	require.NoError(t, err)

	_, err = reg.Define("high", func(_ *Registry, _ ...any) (any, error) {
		return Query{Criteria: reg.mustModel(t).Where(ir.Doc{"priority": "high"})}, nil
	})
	require.NoError(t, err)

	return reg, coll
}

func (r *Registry) mustModel(t *testing.T) *model.Model {
	t.Helper()
	m, err := r.Model()
	require.NoError(t, err)
	return m
}
