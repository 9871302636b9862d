package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phantien133/active-aggregate/internal/ir"
	"github.com/phantien133/active-aggregate/internal/model"
	"github.com/phantien133/active-aggregate/internal/testutil"
)

func stage(op string) ir.Stage { return ir.CustomStage(op, ir.Doc{}) }

func TestMergeConcatenatesCustomStagesAssociatively(t *testing.T) {
	reg, _ := newOrders(t)
	a := reg.Pipeline(stage("$a1"), stage("$a2"))
	b := reg.Pipeline(stage("$b1"))
	c := reg.Pipeline(stage("$c1"), stage("$c2"))

	ab, err := a.Merge(b)
	require.NoError(t, err)
	left, err := ab.Merge(c)
	require.NoError(t, err)

	bc, err := b.Merge(c)
	require.NoError(t, err)
	right, err := a.Merge(bc)
	require.NoError(t, err)

	want := []string{"$a1", "$a2", "$b1", "$c1", "$c2"}
	assert.Equal(t, want, left.State().Pipeline.Ops())
	assert.Equal(t, want, right.State().Pipeline.Ops())
}

func TestMergeSortAndLimitLastWriterWins(t *testing.T) {
	reg, _ := newOrders(t)
	withBoth := reg.All().Sort(ir.By("a", ir.Asc)).Limit(5)
	withNeither := reg.All()
	other := reg.All().Sort(ir.By("b", ir.Desc)).Limit(9)

	m, err := withBoth.Merge(other)
	require.NoError(t, err)
	assert.Equal(t, ir.By("b", ir.Desc), m.State().Sort)
	assert.Equal(t, int64(9), m.State().Limit)

	m, err = withBoth.Merge(withNeither)
	require.NoError(t, err)
	assert.Equal(t, ir.By("a", ir.Asc), m.State().Sort)
	assert.Equal(t, int64(5), m.State().Limit)
}

func TestMergeDeepMergesGroupAndProject(t *testing.T) {
	reg, _ := newOrders(t)
	a := reg.Group(ir.Doc{"_id": "$status", "total": ir.Doc{"$sum": "$amount"}}).
		Project(ir.Doc{"status": 1, "meta": ir.Doc{"a": 1}})
	b := reg.Group(ir.Doc{"count": ir.Doc{"$sum": 1}, "total": ir.Doc{"$sum": "$net"}}).
		Project(ir.Doc{"meta": ir.Doc{"b": 1}})

	m, err := a.Merge(b)
	require.NoError(t, err)
	assert.Equal(t, ir.Doc{
		"_id":   "$status",
		"total": ir.Doc{"$sum": "$net"},
		"count": ir.Doc{"$sum": 1},
	}, m.State().Group)
	assert.Equal(t, ir.Doc{"status": 1, "meta": ir.Doc{"a": 1, "b": 1}}, m.State().Project)
}

func TestMergeConjunctionOfScopes(t *testing.T) {
	reg, _ := newOrders(t)

	m, err := reg.Scope("open").Merge(reg.Scope("high"))
	require.NoError(t, err)

	p, err := m.Compile()
	require.NoError(t, err)
	assert.Equal(t, ir.Pipeline{ir.MatchStage(ir.Doc{"status": "open", "priority": "high"})}, p)
}

func TestMergeAcrossRegistriesFails(t *testing.T) {
	reg, _ := newOrders(t)
	other := NewRegistry("UserAggregate", WithModel(model.New("User", testutil.NewRecordingCollection("users"))))

	m, err := reg.All().Merge(other.All())
	require.Error(t, err)
	assert.True(t, IsScopeMismatch(err))
	assert.True(t, IsScopeMismatch(m.Err()))

	rel := reg.All().Query(other.All())
	assert.True(t, IsScopeMismatch(rel.Err()))

	_, err = rel.Where(ir.Doc{"a": 1}).Compile()
	assert.True(t, IsScopeMismatch(err), "errors survive further chaining")
}

func TestMergeNil(t *testing.T) {
	reg, _ := newOrders(t)
	rel := reg.Where(ir.Doc{"a": 1})

	m, err := rel.Merge(nil)
	require.NoError(t, err)
	assert.NotSame(t, rel, m)
	assert.Equal(t, rel.State(), m.State())
}

func TestPureBuildersDoNotMutateReceiver(t *testing.T) {
	reg, _ := newOrders(t)
	base := reg.Where(ir.Doc{"status": "paid"})
	before := base.State()

	_ = base.Where(ir.Doc{"priority": "high"})
	_ = base.WhereIn("region", "eu")
	_ = base.AnyOf(ir.Doc{"a": 1})
	_ = base.AllOf(ir.Doc{"b": 1})
	_ = base.Group(ir.Doc{"_id": "$status"})
	_ = base.Project(ir.Doc{"status": 1})
	_ = base.Pipeline(stage("$x"))
	_ = base.Query(Query{Limit: 3})
	_ = base.Scope("recent", 3)

	assert.Equal(t, before, base.State())
}

func TestBuildersOnFailedRelationReturnNewRelation(t *testing.T) {
	reg, _ := newOrders(t)
	broken := reg.Scope("missing")
	require.Error(t, broken.Err())

	derived := []*Relation{
		broken.Where(ir.Doc{"a": 1}),
		broken.Group(ir.Doc{"_id": "$a"}),
		broken.Pipeline(stage("$x")),
		broken.Scope("open"),
	}
	for _, d := range derived {
		assert.NotSame(t, broken, d)
		assert.True(t, IsUnknownMember(d.Err()))
	}

	derived[0].Limit(3)
	assert.Zero(t, broken.State().Limit, "in-place edits on a derived relation stay local")
}

func TestInPlaceMutators(t *testing.T) {
	reg, _ := newOrders(t)
	rel := reg.All()

	assert.Same(t, rel, rel.Sort(ir.By("a", ir.Asc)))
	assert.Same(t, rel, rel.Limit(3))
	assert.Same(t, rel, rel.AddStages(stage("$x")))
	assert.Same(t, rel, rel.AddStages(stage("$y")))
	assert.Same(t, rel, rel.Cache())

	st := rel.State()
	assert.Equal(t, ir.By("a", ir.Asc), st.Sort)
	assert.Equal(t, int64(3), st.Limit)
	assert.Equal(t, []string{"$x", "$y"}, st.Pipeline.Ops())
	assert.True(t, rel.Cacheable())

	rel.OverrideStages(stage("$z"))
	assert.Equal(t, []string{"$z"}, rel.State().Pipeline.Ops())
}

func TestLimitZeroIgnoredNegativeRejected(t *testing.T) {
	reg, _ := newOrders(t)

	rel := reg.All().Limit(4).Limit(0)
	assert.Equal(t, int64(4), rel.State().Limit)
	assert.NoError(t, rel.Err())

	rel.Limit(-1)
	assert.ErrorIs(t, rel.Err(), ErrInvalidArgument)
}

func TestQueryAcceptsPointerAndIgnoresOtherValues(t *testing.T) {
	reg, _ := newOrders(t)
	base := reg.All()

	assert.Equal(t, int64(2), base.Query(&Query{Limit: 2}).State().Limit)
	assert.Same(t, base, base.Query(ir.Doc{"limit": 2}))
	assert.Same(t, base, base.Query((*Query)(nil)))
}

func TestScopeChainMergesNamedScope(t *testing.T) {
	reg, _ := newOrders(t)

	p, err := reg.Where(ir.Doc{"status": "paid"}).Scope("recent", 30).Compile()
	require.NoError(t, err)

	cutoff := testNow.AddDate(0, 0, -30)
	assert.Equal(t, ir.Pipeline{
		ir.MatchStage(ir.Doc{"status": "paid", "createdAt": ir.Doc{"$gte": cutoff}}),
		ir.SortStage(ir.By("createdAt", ir.Desc)),
		ir.LimitStage(10),
	}, p)

	rel := reg.All().Scope("missing")
	assert.True(t, IsUnknownMember(rel.Err()))
}

func TestGenerateReEvaluatesBody(t *testing.T) {
	reg, _ := newOrders(t)
	calls := 0
	_, err := reg.Define("counted", func(_ *Registry, args ...any) (any, error) {
		calls++
		return Query{Limit: int64(calls), Pipeline: ir.Pipeline{stage("$tick")}}, nil
	})
	require.NoError(t, err)

	rel := reg.Scope("counted")
	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(1), rel.State().Limit)

	again := rel.Generate()
	assert.Same(t, rel, again)
	assert.Equal(t, 2, calls, "generate runs the body on every call")
	assert.Equal(t, int64(2), rel.State().Limit)
	assert.Equal(t, []string{"$tick"}, rel.State().Pipeline.Ops(),
		"state is rebuilt from the seed, not accumulated")
}

func TestGenerateKeepsInPlaceEdits(t *testing.T) {
	reg, _ := newOrders(t)
	_, err := reg.Define("tagged", func(*Registry, ...any) (any, error) {
		return Query{Pipeline: ir.Pipeline{stage("$body")}}, nil
	})
	require.NoError(t, err)

	rel := reg.Scope("tagged").AddStages(stage("$edit")).Sort(ir.By("a", ir.Asc))
	rel.Generate()

	assert.Equal(t, []string{"$body", "$edit"}, rel.State().Pipeline.Ops())
	assert.Equal(t, ir.By("a", ir.Asc), rel.State().Sort)
}

func TestGenerateEditsWinOverBodyResult(t *testing.T) {
	reg, _ := newOrders(t)
	bodies := map[string]Body{
		"query result": func(*Registry, ...any) (any, error) {
			return Query{Sort: ir.By("b", ir.Desc), Limit: 5, Pipeline: ir.Pipeline{stage("$body")}}, nil
		},
		"relation result": func(r *Registry, _ ...any) (any, error) {
			return r.Query(Query{Sort: ir.By("b", ir.Desc), Limit: 5, Pipeline: ir.Pipeline{stage("$body")}}), nil
		},
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			rel := reg.newRelation("ranked", Query{}, body).
				Sort(ir.By("a", ir.Asc)).
				Limit(2).
				AddStages(stage("$edit"))

			st := rel.Generate().State()
			assert.Equal(t, ir.By("a", ir.Asc), st.Sort)
			assert.Equal(t, int64(2), st.Limit)
			assert.Equal(t, []string{"$body", "$edit"}, st.Pipeline.Ops())
		})
	}
}

func TestGenerateWithoutBodyIsIdentity(t *testing.T) {
	reg, _ := newOrders(t)
	rel := reg.Where(ir.Doc{"a": 1})
	before := rel.State()

	assert.Same(t, rel, rel.Generate(1, 2, 3))
	assert.Equal(t, before, rel.State())
}

func TestGenerateIgnoresOtherResults(t *testing.T) {
	reg, _ := newOrders(t)
	_, err := reg.DefineWithSeed("noop", Query{Limit: 7}, func(*Registry, ...any) (any, error) {
		return "not a query", nil
	})
	require.NoError(t, err)

	rel := reg.Scope("noop")
	assert.NoError(t, rel.Err())
	assert.Equal(t, int64(7), rel.State().Limit)
}

func TestGenerateWithRelationResultMerges(t *testing.T) {
	reg, _ := newOrders(t)
	_, err := reg.DefineWithSeed("recentOpen", Query{Pipeline: ir.Pipeline{stage("$seed")}},
		func(r *Registry, args ...any) (any, error) {
			return r.Scope("recent", args...).Scope("open").Pipeline(stage("$body")), nil
		})
	require.NoError(t, err)

	rel := reg.Scope("recentOpen", 1)
	require.NoError(t, rel.Err())
	st := rel.State()
	assert.Equal(t, []string{"$seed", "$body"}, st.Pipeline.Ops())
	assert.Equal(t, int64(10), st.Limit)
	assert.Equal(t, []string{"createdAt", "status"}, st.Criteria.Keys())
}
