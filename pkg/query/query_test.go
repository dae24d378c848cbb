package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/acorndb/pkg/index"
	"github.com/cuemby/acorndb/pkg/query"
)

type thing struct {
	ID    string
	Name  string
	Price int
}

func priceGet(doc any) any { return doc.(thing).Price }
func priceCmp(a, b any) int {
	x, y := a.(int), b.(int)
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

func TestEqualPredicateEval(t *testing.T) {
	pred := query.Equal{Property: "Name", Get: func(doc any) any { return doc.(thing).Name }, Value: "bolt"}
	assert.True(t, pred.Eval(thing{Name: "bolt"}))
	assert.False(t, pred.Eval(thing{Name: "nut"}))
}

func TestCmpPredicateOperators(t *testing.T) {
	cases := []struct {
		op   query.Op
		want bool
	}{
		{query.OpEqual, false},
		{query.OpNotEqual, true},
		{query.OpLessThan, true},
		{query.OpLessEqual, true},
		{query.OpGreaterThan, false},
		{query.OpGreaterEqual, false},
	}
	for _, c := range cases {
		pred := query.Cmp{Property: "Price", Get: priceGet, Op: c.op, Value: 100, Compare: priceCmp}
		assert.Equal(t, c.want, pred.Eval(thing{Price: 10}), "op %s", c.op)
	}
}

func TestAndRequiresBoth(t *testing.T) {
	a := query.Equal{Property: "Name", Get: func(doc any) any { return doc.(thing).Name }, Value: "bolt"}
	b := query.Cmp{Property: "Price", Get: priceGet, Op: query.OpGreaterThan, Value: 5, Compare: priceCmp}
	and := query.And{Left: a, Right: b}

	assert.True(t, and.Eval(thing{Name: "bolt", Price: 10}))
	assert.False(t, and.Eval(thing{Name: "bolt", Price: 1}))
	assert.False(t, and.Eval(thing{Name: "nut", Price: 10}))
}

func TestOrRequiresEither(t *testing.T) {
	a := query.Equal{Property: "Name", Get: func(doc any) any { return doc.(thing).Name }, Value: "bolt"}
	b := query.Equal{Property: "Name", Get: func(doc any) any { return doc.(thing).Name }, Value: "nut"}
	or := query.Or{Left: a, Right: b}

	assert.True(t, or.Eval(thing{Name: "bolt"}))
	assert.True(t, or.Eval(thing{Name: "nut"}))
	assert.False(t, or.Eval(thing{Name: "screw"}))
}

func TestContainsOrDetectsNestedOr(t *testing.T) {
	a := query.Equal{Property: "Name", Value: "bolt", Get: func(doc any) any { return doc.(thing).Name }}
	b := query.Equal{Property: "Name", Value: "nut", Get: func(doc any) any { return doc.(thing).Name }}
	assert.False(t, query.ContainsOr(query.And{Left: a, Right: b}))
	assert.True(t, query.ContainsOr(query.And{Left: a, Right: query.Or{Left: a, Right: b}}))
}

func newManagerWithPriceIndex(t *testing.T) (*index.Manager, *index.ScalarIndex[int]) {
	t.Helper()
	mgr := index.NewManager("things")
	priceIdx := index.NewScalarIndex[int]("IX_Thing_Price", "Price", func(doc any) (int, bool) {
		th, ok := doc.(thing)
		return th.Price, ok
	}, func(a, b int) bool { return a < b })
	mgr.Register(priceIdx)
	return mgr, priceIdx
}

func TestPlannerExplainChoosesIdentityForIDEquality(t *testing.T) {
	mgr, _ := newManagerWithPriceIndex(t)
	require.NoError(t, mgr.OnPut("t-1", thing{ID: "t-1", Price: 10}))
	planner := query.NewPlanner("things", mgr, func() int { return 1 })

	pred := query.Equal{Property: "id", Get: func(doc any) any { return doc.(thing).ID }, Value: "t-1"}
	plan := planner.Explain(pred, nil, 0, 0, "")
	assert.Equal(t, query.IndexSeek, plan.Strategy)
	assert.Equal(t, mgr.Identity().Name(), plan.IndexName)
}

func TestPlannerExplainChoosesScalarIndexOverFullScan(t *testing.T) {
	mgr, _ := newManagerWithPriceIndex(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, mgr.OnPut(string(rune('a'+i)), thing{ID: string(rune('a' + i)), Price: i}))
	}
	planner := query.NewPlanner("things", mgr, func() int { return 5 })

	pred := query.Cmp{Property: "Price", Get: priceGet, Op: query.OpEqual, Value: 2, Compare: priceCmp}
	plan := planner.Explain(pred, nil, 0, 0, "")
	assert.Equal(t, query.IndexSeek, plan.Strategy)
	assert.Equal(t, "IX_Thing_Price", plan.IndexName)
}

func TestPlannerExplainFallsBackToFullScanForOrPredicate(t *testing.T) {
	mgr, _ := newManagerWithPriceIndex(t)
	planner := query.NewPlanner("things", mgr, func() int { return 3 })

	pred := query.Or{
		Left:  query.Cmp{Property: "Price", Get: priceGet, Op: query.OpEqual, Value: 1, Compare: priceCmp},
		Right: query.Cmp{Property: "Price", Get: priceGet, Op: query.OpEqual, Value: 2, Compare: priceCmp},
	}
	plan := planner.Explain(pred, nil, 0, 0, "")
	assert.Equal(t, query.FullScan, plan.Strategy)
}

func TestPlannerExplainHonorsIndexHint(t *testing.T) {
	mgr, _ := newManagerWithPriceIndex(t)
	planner := query.NewPlanner("things", mgr, func() int { return 0 })

	plan := planner.Explain(nil, nil, 0, 0, "IX_Thing_Price")
	assert.Equal(t, query.IndexSeek, plan.Strategy)
	assert.Equal(t, "IX_Thing_Price", plan.IndexName)
}

func TestPlannerExecuteAppliesSkipAndTake(t *testing.T) {
	mgr, _ := newManagerWithPriceIndex(t)
	docs := map[string]thing{}
	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		d := thing{ID: id, Price: i}
		docs[id] = d
		require.NoError(t, mgr.OnPut(id, d))
	}
	planner := query.NewPlanner("things", mgr, func() int { return len(docs) })

	plan := planner.Explain(nil, &query.OrderBy{
		Property: "Price", Get: priceGet, Less: func(a, b any) bool { return a.(int) < b.(int) },
	}, 1, 2, "")

	hydrate := func(id string) (any, bool) { d, ok := docs[id]; return d, ok }
	fullScan := func() []string {
		ids := make([]string, 0, len(docs))
		for id := range docs {
			ids = append(ids, id)
		}
		return ids
	}

	ids := planner.Execute(plan, hydrate, fullScan)
	require.Len(t, ids, 2)
	assert.Equal(t, docs[ids[0]].Price < docs[ids[1]].Price, true)
}

func TestExplainStringIncludesStrategyAndCandidates(t *testing.T) {
	mgr, _ := newManagerWithPriceIndex(t)
	planner := query.NewPlanner("things", mgr, func() int { return 0 })
	plan := planner.Explain(nil, nil, 0, 0, "")
	out := query.ExplainString(plan)
	assert.Contains(t, out, "strategy=")
	assert.Contains(t, out, "explanation:")
}
