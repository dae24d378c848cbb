package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/acorndb/pkg/index"
	"github.com/cuemby/acorndb/pkg/query"
)

func nameGet(doc any) any { return doc.(thing).Name }
func nameCmp(a, b any) int {
	x, y := a.(string), b.(string)
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

func newRangeFixture(t *testing.T) (*index.Manager, map[string]thing, *query.Planner) {
	t.Helper()
	mgr := index.NewManager("things")
	priceIdx := index.NewScalarIndex[int]("IX_Thing_Price", "Price", func(doc any) (int, bool) {
		d, ok := doc.(thing)
		return d.Price, ok
	}, func(a, b int) bool { return a < b })
	mgr.Register(priceIdx)

	docs := map[string]thing{}
	for i := 0; i < 6; i++ {
		id := string(rune('a' + i))
		d := thing{ID: id, Price: i * 10}
		docs[id] = d
		require.NoError(t, mgr.OnPut(id, d))
	}
	planner := query.NewPlanner("things", mgr, func() int { return len(docs) })
	return mgr, docs, planner
}

func hydrateFrom(docs map[string]thing) (query.Hydrate, func() []string) {
	hydrate := func(id string) (any, bool) { d, ok := docs[id]; return d, ok }
	fullScan := func() []string {
		ids := make([]string, 0, len(docs))
		for id := range docs {
			ids = append(ids, id)
		}
		return ids
	}
	return hydrate, fullScan
}

func TestPlannerChoosesRangeScanForComparison(t *testing.T) {
	_, docs, planner := newRangeFixture(t)

	pred := query.Cmp{Property: "Price", Get: priceGet, Op: query.OpGreaterThan, Value: 20, Compare: priceCmp}
	plan := planner.Explain(pred, nil, 0, 0, "")
	assert.Equal(t, query.IndexRangeScan, plan.Strategy)
	assert.Equal(t, "IX_Thing_Price", plan.IndexName)

	hydrate, fullScan := hydrateFrom(docs)
	ids := planner.Execute(plan, hydrate, fullScan)
	// Prices 30, 40, 50: the inclusive index range re-filtered by the
	// strict > predicate.
	assert.ElementsMatch(t, []string{"d", "e", "f"}, ids)
}

func TestRangeScanBoundedBothSides(t *testing.T) {
	_, docs, planner := newRangeFixture(t)

	pred := query.And{
		Left:  query.Cmp{Property: "Price", Get: priceGet, Op: query.OpGreaterEqual, Value: 10, Compare: priceCmp},
		Right: query.Cmp{Property: "Price", Get: priceGet, Op: query.OpLessThan, Value: 40, Compare: priceCmp},
	}
	plan := planner.Explain(pred, nil, 0, 0, "")
	assert.Equal(t, query.IndexRangeScan, plan.Strategy)

	hydrate, fullScan := hydrateFrom(docs)
	ids := planner.Execute(plan, hydrate, fullScan)
	assert.ElementsMatch(t, []string{"b", "c", "d"}, ids)
}

func TestPlannerMergesTwoEqualityIndexes(t *testing.T) {
	mgr := index.NewManager("things")
	priceIdx := index.NewScalarIndex[int]("IX_Thing_Price", "Price", func(doc any) (int, bool) {
		d, ok := doc.(thing)
		return d.Price, ok
	}, func(a, b int) bool { return a < b })
	nameIdx := index.NewScalarIndex[string]("IX_Thing_Name", "Name", func(doc any) (string, bool) {
		d, ok := doc.(thing)
		return d.Name, ok
	}, func(a, b string) bool { return a < b })
	mgr.Register(priceIdx)
	mgr.Register(nameIdx)

	docs := map[string]thing{
		"1": {ID: "1", Name: "bolt", Price: 10},
		"2": {ID: "2", Name: "bolt", Price: 20},
		"3": {ID: "3", Name: "nut", Price: 10},
	}
	for id, d := range docs {
		require.NoError(t, mgr.OnPut(id, d))
	}
	planner := query.NewPlanner("things", mgr, func() int { return len(docs) })

	pred := query.And{
		Left:  query.Equal{Property: "Name", Get: nameGet, Value: "bolt"},
		Right: query.Cmp{Property: "Price", Get: priceGet, Op: query.OpEqual, Value: 10, Compare: priceCmp},
	}
	plan := planner.Explain(pred, nil, 0, 0, "")
	require.Equal(t, query.IndexMerge, plan.Strategy)
	assert.ElementsMatch(t, []string{"IX_Thing_Price", "IX_Thing_Name"}, plan.MergeIndexes)

	hydrate, fullScan := hydrateFrom(docs)
	ids := planner.Execute(plan, hydrate, fullScan)
	assert.Equal(t, []string{"1"}, ids)
}

func TestMergeEmptyIntersectionReturnsNothing(t *testing.T) {
	mgr := index.NewManager("things")
	priceIdx := index.NewScalarIndex[int]("IX_Thing_Price", "Price", func(doc any) (int, bool) {
		d, ok := doc.(thing)
		return d.Price, ok
	}, func(a, b int) bool { return a < b })
	nameIdx := index.NewScalarIndex[string]("IX_Thing_Name", "Name", func(doc any) (string, bool) {
		d, ok := doc.(thing)
		return d.Name, ok
	}, func(a, b string) bool { return a < b })
	mgr.Register(priceIdx)
	mgr.Register(nameIdx)

	docs := map[string]thing{
		"1": {ID: "1", Name: "bolt", Price: 10},
		"2": {ID: "2", Name: "nut", Price: 20},
	}
	for id, d := range docs {
		require.NoError(t, mgr.OnPut(id, d))
	}
	planner := query.NewPlanner("things", mgr, func() int { return len(docs) })

	pred := query.And{
		Left:  query.Equal{Property: "Name", Get: nameGet, Value: "bolt"},
		Right: query.Cmp{Property: "Price", Get: priceGet, Op: query.OpEqual, Value: 20, Compare: priceCmp},
	}
	plan := planner.Explain(pred, nil, 0, 0, "")
	require.Equal(t, query.IndexMerge, plan.Strategy)

	hydrate, fullScan := hydrateFrom(docs)
	assert.Empty(t, planner.Execute(plan, hydrate, fullScan))
}
