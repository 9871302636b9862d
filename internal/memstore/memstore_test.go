package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phantien133/active-aggregate/internal/ir"
	"github.com/phantien133/active-aggregate/internal/model"
)

func orders() []ir.Doc {
	return []ir.Doc{
		{"_id": 1, "status": "paid", "priority": "high", "total": 40, "email": "a@example.com", "items": []any{"x", "y"}},
		{"_id": 2, "status": "open", "priority": "low", "total": 12.5},
		{"_id": 3, "status": "paid", "priority": "low", "total": 8, "email": "c@example.com", "items": []any{}},
		{"_id": 4, "status": "void", "priority": "high", "total": 99, "customer": ir.Doc{"tier": "gold"}},
	}
}

func run(t *testing.T, p ir.Pipeline) []ir.Doc {
	t.Helper()
	out, err := Evaluate(context.Background(), orders(), p)
	require.NoError(t, err)
	return out
}

func ids(docs []ir.Doc) []any {
	out := make([]any, len(docs))
	for i, d := range docs {
		out[i] = d["_id"]
	}
	return out
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name     string
		selector ir.Doc
		want     []any
	}{
		{"equality", ir.Doc{"status": "paid"}, []any{1, 3}},
		{"two fields", ir.Doc{"status": "paid", "priority": "high"}, []any{1}},
		{"gt int vs float", ir.Doc{"total": ir.Doc{"$gt": 12}}, []any{1, 2, 4}},
		{"range", ir.Doc{"total": ir.Doc{"$gte": 8, "$lt": 40}}, []any{2, 3}},
		{"in", ir.Doc{"status": ir.Doc{"$in": []any{"open", "void"}}}, []any{2, 4}},
		{"nin", ir.Doc{"status": ir.Doc{"$nin": []any{"open", "void"}}}, []any{1, 3}},
		{"ne", ir.Doc{"status": ir.Doc{"$ne": "paid"}}, []any{2, 4}},
		{"exists", ir.Doc{"email": ir.Doc{"$exists": true}}, []any{1, 3}},
		{"not exists", ir.Doc{"email": ir.Doc{"$exists": false}}, []any{2, 4}},
		{"null matches missing", ir.Doc{"email": nil}, []any{2, 4}},
		{"array element", ir.Doc{"items": "y"}, []any{1}},
		{"size", ir.Doc{"items": ir.Doc{"$size": 0}}, []any{3}},
		{"nested path", ir.Doc{"customer.tier": "gold"}, []any{4}},
		{"not", ir.Doc{"total": ir.Doc{"$not": ir.Doc{"$gt": 10}}}, []any{3}},
		{"regex", ir.Doc{"email": ir.Doc{"$regex": "^A@", "$options": "i"}}, []any{1}},
		{"or", ir.Doc{"$or": []any{ir.Doc{"status": "open"}, ir.Doc{"total": 99}}}, []any{2, 4}},
		{"and", ir.Doc{"$and": []any{ir.Doc{"priority": "high"}, ir.Doc{"status": "paid"}}}, []any{1}},
		{"nor", ir.Doc{"$nor": []any{ir.Doc{"status": "paid"}, ir.Doc{"status": "void"}}}, []any{2}},
		{"empty selector", ir.Doc{}, []any{1, 2, 3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := run(t, ir.Pipeline{ir.MatchStage(tt.selector)})
			assert.Equal(t, tt.want, ids(out))
		})
	}
}

func TestMatchErrors(t *testing.T) {
	_, err := Evaluate(context.Background(), orders(), ir.Pipeline{
		ir.MatchStage(ir.Doc{"total": ir.Doc{"$between": 1}}),
	})
	assert.ErrorContains(t, err, "unsupported operator $between")

	_, err = Evaluate(context.Background(), orders(), ir.Pipeline{
		ir.MatchStage(ir.Doc{"$or": []any{}}),
	})
	assert.ErrorContains(t, err, "non-empty array")
}

func TestSortLimitSkip(t *testing.T) {
	out := run(t, ir.Pipeline{
		ir.SortStage(ir.By("priority", ir.Asc).Then("total", ir.Desc)),
	})
	assert.Equal(t, []any{4, 1, 2, 3}, ids(out))

	out = run(t, ir.Pipeline{
		ir.SortStage(ir.By("total", ir.Desc)),
		ir.CustomStage("$skip", 1),
		ir.LimitStage(2),
	})
	assert.Equal(t, []any{1, 2}, ids(out))

	out = run(t, ir.Pipeline{ir.CustomStage("$sort", ir.Doc{"email": 1})})
	assert.Equal(t, []any{2, 4, 1, 3}, ids(out), "missing sorts first")

	_, err := Evaluate(context.Background(), orders(), ir.Pipeline{
		ir.CustomStage("$sort", ir.Doc{"a": 1, "b": 1}),
	})
	assert.ErrorContains(t, err, "exactly one key")
}

func TestGroup(t *testing.T) {
	out := run(t, ir.Pipeline{
		ir.GroupStage(ir.Doc{
			"_id":    "$status",
			"count":  ir.Doc{"$sum": 1},
			"total":  ir.Doc{"$sum": "$total"},
			"avg":    ir.Doc{"$avg": "$total"},
			"max":    ir.Doc{"$max": "$total"},
			"min":    ir.Doc{"$min": "$total"},
			"first":  ir.Doc{"$first": "$_id"},
			"last":   ir.Doc{"$last": "$_id"},
			"emails": ir.Doc{"$push": "$email"},
			"prios":  ir.Doc{"$addToSet": "$priority"},
			"n":      ir.Doc{"$count": ir.Doc{}},
		}),
	})
	require.Len(t, out, 3)

	paid := out[0]
	assert.Equal(t, "paid", paid["_id"])
	assert.Equal(t, int64(2), paid["count"])
	assert.Equal(t, int64(48), paid["total"])
	assert.Equal(t, 24.0, paid["avg"])
	assert.Equal(t, 40, paid["max"])
	assert.Equal(t, 8, paid["min"])
	assert.Equal(t, 1, paid["first"])
	assert.Equal(t, 3, paid["last"])
	assert.Equal(t, []any{"a@example.com", "c@example.com"}, paid["emails"])
	assert.Equal(t, []any{"high", "low"}, paid["prios"])
	assert.Equal(t, int64(2), paid["n"])

	open := out[1]
	assert.Equal(t, "open", open["_id"])
	assert.Equal(t, 12.5, open["total"], "float input gives a float sum")
}

func TestGroupCompositeAndNullID(t *testing.T) {
	out := run(t, ir.Pipeline{
		ir.GroupStage(ir.Doc{"_id": ir.Doc{"s": "$status", "p": "$priority"}, "n": ir.Doc{"$sum": 1}}),
	})
	assert.Len(t, out, 4)
	assert.Equal(t, ir.Doc{"s": "paid", "p": "high"}, out[0]["_id"])

	out = run(t, ir.Pipeline{
		ir.GroupStage(ir.Doc{"_id": nil, "total": ir.Doc{"$sum": "$total"}}),
	})
	require.Len(t, out, 1)
	assert.Equal(t, 159.5, out[0]["total"])
}

func TestGroupErrors(t *testing.T) {
	_, err := Evaluate(context.Background(), orders(), ir.Pipeline{ir.GroupStage(ir.Doc{"n": ir.Doc{"$sum": 1}})})
	assert.ErrorContains(t, err, "_id is required")

	_, err = Evaluate(context.Background(), orders(), ir.Pipeline{
		ir.GroupStage(ir.Doc{"_id": nil, "x": ir.Doc{"$median": "$total"}}),
	})
	assert.ErrorContains(t, err, "unsupported accumulator $median")
}

func TestProject(t *testing.T) {
	out := run(t, ir.Pipeline{
		ir.MatchStage(ir.Doc{"_id": 4}),
		ir.ProjectStage(ir.Doc{"status": 1, "tier": "$customer.tier", "customer.tier": 1}),
	})
	assert.Equal(t, []ir.Doc{{
		"_id":      4,
		"status":   "void",
		"tier":     "gold",
		"customer": ir.Doc{"tier": "gold"},
	}}, out)

	out = run(t, ir.Pipeline{
		ir.MatchStage(ir.Doc{"_id": 2}),
		ir.ProjectStage(ir.Doc{"_id": 0, "total": 0, "priority": false}),
	})
	assert.Equal(t, []ir.Doc{{"status": "open"}}, out)

	_, err := Evaluate(context.Background(), orders(), ir.Pipeline{
		ir.ProjectStage(ir.Doc{"status": 1, "total": 0}),
	})
	assert.ErrorContains(t, err, "cannot mix")
}

func TestSelectAllProjectionPassesFilteredFields(t *testing.T) {
	out := run(t, ir.Pipeline{
		ir.MatchStage(ir.Doc{"status": "paid"}),
		ir.ProjectStage(ir.Doc{"status": "$status"}),
	})
	assert.Equal(t, []ir.Doc{{"_id": 1, "status": "paid"}, {"_id": 3, "status": "paid"}}, out)
}

func TestUnwindCountAddFields(t *testing.T) {
	out := run(t, ir.Pipeline{ir.CustomStage("$unwind", "$items")})
	assert.Equal(t, []any{1, 1}, ids(out))
	assert.Equal(t, "x", out[0]["items"])

	out = run(t, ir.Pipeline{ir.CustomStage("$unwind", ir.Doc{"path": "$items", "preserveNullAndEmptyArrays": true})})
	assert.Equal(t, []any{1, 1, 2, 3, 4}, ids(out))

	out = run(t, ir.Pipeline{ir.MatchStage(ir.Doc{"status": "paid"}), ir.CustomStage("$count", "n")})
	assert.Equal(t, []ir.Doc{{"n": int64(2)}}, out)

	out = run(t, ir.Pipeline{ir.MatchStage(ir.Doc{"status": "none"}), ir.CustomStage("$count", "n")})
	assert.Empty(t, out)

	out = run(t, ir.Pipeline{
		ir.MatchStage(ir.Doc{"_id": 1}),
		ir.CustomStage("$addFields", ir.Doc{"label": ir.Doc{"$literal": "$raw"}, "copy": "$status"}),
	})
	assert.Equal(t, "$raw", out[0]["label"])
	assert.Equal(t, "paid", out[0]["copy"])
}

func TestUnsupportedStage(t *testing.T) {
	_, err := Evaluate(context.Background(), orders(), ir.Pipeline{ir.CustomStage("$lookup", ir.Doc{})})
	assert.ErrorContains(t, err, "stage 0: unsupported stage $lookup")
	assert.False(t, Supported("$lookup"))
	assert.True(t, Supported("$match"))
}

func TestCollectionAggregate(t *testing.T) {
	ctx := context.Background()
	coll := New("orders", orders()...)
	assert.Equal(t, 4, coll.Len())

	cur, err := coll.Aggregate(ctx, ir.Pipeline{ir.MatchStage(ir.Doc{"status": "paid"})}, model.ExecOptions{})
	require.NoError(t, err)
	docs, err := model.Drain(ctx, cur)
	require.NoError(t, err)
	assert.Equal(t, []any{1, 3}, ids(docs))

	docs[0]["status"] = "mutated"
	cur, err = coll.Aggregate(ctx, ir.Pipeline{ir.MatchStage(ir.Doc{"status": "paid"})}, model.ExecOptions{})
	require.NoError(t, err)
	docs, err = model.Drain(ctx, cur)
	require.NoError(t, err)
	assert.Len(t, docs, 2, "stored documents are isolated from results")

	_, err = coll.Aggregate(ctx, ir.Pipeline{ir.CustomStage("$out", "x")}, model.ExecOptions{})
	assert.ErrorContains(t, err, "memstore: orders:")
}

func TestEvaluateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Evaluate(ctx, orders(), ir.Pipeline{ir.LimitStage(1)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProjectOnlyDropID(t *testing.T) {
	out := run(t, ir.Pipeline{
		ir.MatchStage(ir.Doc{"_id": 2}),
		ir.ProjectStage(ir.Doc{"_id": 0}),
	})
	assert.Equal(t, []ir.Doc{{"status": "open", "priority": "low", "total": 12.5}}, out)
}
