package scope

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phantien133/active-aggregate/internal/ir"
)

func assertGoldenPipeline(t *testing.T, name string, p ir.Pipeline) {
	t.Helper()
	data, err := json.MarshalIndent(p, "", "  ")
	require.NoError(t, err)
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}

func TestCompile_RecentThenGroup(t *testing.T) {
	reg, _ := newOrders(t)

	p, err := reg.Scope("recent", 7).
		Group(ir.Doc{"_id": "$status", "count": ir.Doc{"$sum": 1}}).
		Compile()
	require.NoError(t, err)

	cutoff := testNow.AddDate(0, 0, -7)
	assert.Equal(t, ir.Pipeline{
		ir.MatchStage(ir.Doc{"createdAt": ir.Doc{"$gte": cutoff}}),
		ir.GroupStage(ir.Doc{"_id": "$status", "count": ir.Doc{"$sum": 1}}),
		ir.SortStage(ir.By("createdAt", ir.Desc)),
		ir.LimitStage(10),
	}, p)
	assertGoldenPipeline(t, "recent_then_group", p)
}

func TestCompile_FixedStageOrder(t *testing.T) {
	reg, _ := newOrders(t)
	want := []string{"$match", "$group", "$sort", "$project", "$limit", "$unwind", "$lookup"}

	builds := map[string]func() *Relation{
		"custom first": func() *Relation {
			return reg.Pipeline(ir.CustomStage("$unwind", "$items")).
				Limit(5).
				Project(ir.Doc{"status": 1}).
				Sort(ir.By("createdAt", ir.Desc)).
				Group(ir.Doc{"_id": "$status"}).
				Where(ir.Doc{"status": "paid"}).
				Pipeline(ir.CustomStage("$lookup", ir.Doc{"from": "users"}))
		},
		"match first": func() *Relation {
			return reg.Where(ir.Doc{"status": "paid"}).
				Group(ir.Doc{"_id": "$status"}).
				Sort(ir.By("createdAt", ir.Desc)).
				Project(ir.Doc{"status": 1}).
				Limit(5).
				Pipeline(ir.CustomStage("$unwind", "$items"), ir.CustomStage("$lookup", ir.Doc{"from": "users"}))
		},
	}

	var pipelines []ir.Pipeline
	for name, build := range builds {
		t.Run(name, func(t *testing.T) {
			p, err := build().Compile()
			require.NoError(t, err)
			assert.Equal(t, want, p.Ops())
			pipelines = append(pipelines, p)
		})
	}
	require.Len(t, pipelines, 2)
	assert.Equal(t, pipelines[0], pipelines[1])
	assertGoldenPipeline(t, "fixed_stage_order", pipelines[0])
}

func TestCompile_Idempotent(t *testing.T) {
	reg, _ := newOrders(t)
	rel := reg.Scope("recent", 7).Group(ir.Doc{"_id": "$status"}).Cache()

	first, err := rel.Compile(SelectAll())
	require.NoError(t, err)
	second, err := rel.Compile(SelectAll())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, ir.MustFingerprint(first), ir.MustFingerprint(second))
}

func TestCompile_EmptyRelation(t *testing.T) {
	reg, _ := newOrders(t)

	p, err := reg.All().Compile()
	require.NoError(t, err)
	assert.Empty(t, p)

	p, err = reg.All().Compile(SelectAll())
	require.NoError(t, err)
	assert.Empty(t, p, "no filter keys means no derived projection")
}

func TestCompile_SelectAllDerivesProjection(t *testing.T) {
	reg, _ := newOrders(t)
	rel := reg.Where(ir.Doc{"status": "paid", "region": "eu"}).
		AnyOf(ir.Doc{"priority": "high"}, ir.Doc{"vip": true})

	p, err := rel.Compile(SelectAll())
	require.NoError(t, err)
	require.Equal(t, []string{"$match", "$project"}, p.Ops())
	assert.Equal(t, ir.Doc{"region": "$region", "status": "$status"}, p[1].Spec)
	assertGoldenPipeline(t, "select_all", p)

	p, err = rel.Project(ir.Doc{"status": 1}).Compile(SelectAll())
	require.NoError(t, err)
	assert.Equal(t, ir.Doc{"status": 1}, p[1].Spec, "explicit projection wins")

	p, err = rel.Compile()
	require.NoError(t, err)
	assert.Equal(t, []string{"$match"}, p.Ops())
}

func TestCompile_IncludingDoesNotMutate(t *testing.T) {
	reg, _ := newOrders(t)
	rel := reg.Scope("open")
	before := rel.State()

	p, err := rel.Compile(Including(Query{Limit: 1, Pipeline: ir.Pipeline{ir.CustomStage("$count", "n")}}))
	require.NoError(t, err)
	assert.Equal(t, []string{"$match", "$limit", "$count"}, p.Ops())
	assert.Equal(t, before, rel.State())
}

func TestCompile_OutputIsIndependentOfRelation(t *testing.T) {
	reg, _ := newOrders(t)
	rel := reg.Where(ir.Doc{"status": "paid"}).Group(ir.Doc{"_id": "$status"})

	p, err := rel.Compile()
	require.NoError(t, err)
	p[0].Spec.(ir.Doc)["status"] = "void"
	p[1].Spec.(ir.Doc)["_id"] = "$other"

	again, err := rel.Compile()
	require.NoError(t, err)
	assert.Equal(t, ir.Doc{"status": "paid"}, again[0].Spec)
	assert.Equal(t, ir.Doc{"_id": "$status"}, again[1].Spec)
}

func TestFingerprint(t *testing.T) {
	reg, _ := newOrders(t)

	a, err := reg.Scope("open").Merge(reg.Scope("high"))
	require.NoError(t, err)
	b, err := reg.Scope("high").Merge(reg.Scope("open"))
	require.NoError(t, err)

	fa, err := a.Fingerprint()
	require.NoError(t, err)
	fb, err := b.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, fa, fb, "conjunction of disjoint filters is order-insensitive")

	_, err = reg.Scope("missing").Fingerprint()
	assert.True(t, IsUnknownMember(err))
}
