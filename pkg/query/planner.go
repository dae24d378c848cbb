package query

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cuemby/acorndb/pkg/index"
	"github.com/cuemby/acorndb/pkg/metrics"
)

// Strategy names how a Plan intends to gather candidate ids.
type Strategy string

const (
	FullScan       Strategy = "FullScan"
	IndexSeek      Strategy = "IndexSeek"
	IndexRangeScan Strategy = "IndexRangeScan"
	IndexScan      Strategy = "IndexScan" // ordering only, no WHERE match
	IndexMerge     Strategy = "IndexMerge"
)

// Candidate records one index the planner considered, whether or not it was
// chosen.
type Candidate struct {
	IndexName string
	Cost      float64
	Reason    string
}

// Plan is the Query Planner's chosen execution strategy plus its reasoning,
// returned as-is by Explain and executed by Execute.
type Plan struct {
	Strategy              Strategy
	IndexName             string
	Cost                  float64
	EstimatedRowsExamined int
	EstimatedRowsReturned int
	Explanation           string
	Candidates            []Candidate
	MergeIndexes          []string // populated only for IndexMerge

	where   Predicate
	orderBy *OrderBy
	skip    int
	take    int
}

// propertyIndex is implemented by indexes the planner can match against a
// WHERE property (currently ScalarIndex[K] for any K).
type propertyIndex interface {
	index.Index
	Property() string
}

// scalarOps is the type-erased subset of ScalarIndex[K] operations the
// planner needs without committing to a specific K.
type scalarOps interface {
	LookupAny(key any) []string
	SortedAny(ascending bool) []string
}

// rangeOps is the type-erased range lookup of ScalarIndex[K]; open sides
// fall back to the index's own min/max.
type rangeOps interface {
	RangeAny(min, max any, hasMin, hasMax bool) []string
}

// Planner builds and executes Plans over one Collection's indexes.
type Planner struct {
	collection string
	manager    *index.Manager
	entryCount func() int
}

// NewPlanner builds a Planner over manager, using entryCount to estimate
// full-scan cost.
func NewPlanner(collection string, manager *index.Manager, entryCount func() int) *Planner {
	return &Planner{collection: collection, manager: manager, entryCount: entryCount}
}

// Explain builds a Plan for the given WHERE/ORDER BY/skip/take/hint without
// executing it.
func (p *Planner) Explain(where Predicate, orderBy *OrderBy, skip, take int, indexHint string) *Plan {
	n := p.entryCount()
	var candidates []Candidate

	if indexHint != "" {
		if idx, ok := p.manager.Get(indexHint); ok {
			cost := 1.0
			candidates = append(candidates, Candidate{IndexName: idx.Name(), Cost: cost, Reason: "index hint"})
			return p.finish(IndexSeek, idx.Name(), cost, n, candidates, where, orderBy, skip, take,
				fmt.Sprintf("using hinted index %s", idx.Name()))
		}
	}

	var eqConditions, rangeConditions []Condition
	if where != nil && !ContainsOr(where) {
		for _, c := range where.Conditions() {
			switch c.Op {
			case OpEqual:
				eqConditions = append(eqConditions, c)
			case OpLessThan, OpLessEqual, OpGreaterThan, OpGreaterEqual:
				rangeConditions = append(rangeConditions, c)
			}
		}
	}

	if where != nil {
		for _, c := range eqConditions {
			if strings.EqualFold(c.Property, "id") || strings.EqualFold(c.Property, "ID") {
				cost := 1.0
				candidates = append(candidates, Candidate{IndexName: p.manager.Identity().Name(), Cost: cost, Reason: "identity equality"})
				return p.finish(IndexSeek, p.manager.Identity().Name(), cost, 1, candidates, where, orderBy, skip, take,
					"identity index point lookup")
			}
		}
	}

	var best *Candidate
	var bestIdx index.Index
	eqMatched := make(map[string]float64)
	for _, idx := range p.manager.All() {
		pidx, ok := idx.(propertyIndex)
		if !ok {
			continue
		}
		for _, c := range eqConditions {
			if !strings.EqualFold(c.Property, pidx.Property()) {
				continue
			}
			cost := math.Log2(float64(idx.Len()) + 1)
			reason := fmt.Sprintf("scalar index on %s, selectivity log2(%d+1)", pidx.Property(), idx.Len())
			if orderBy != nil && strings.EqualFold(orderBy.Property, pidx.Property()) {
				cost *= 0.3
				reason += ", satisfies ORDER BY (x0.3)"
			}
			if idx.IsNative() {
				cost *= 0.5
				reason += ", native index (x0.5)"
			}
			cand := Candidate{IndexName: idx.Name(), Cost: cost, Reason: reason}
			candidates = append(candidates, cand)
			eqMatched[idx.Name()] = cost
			if best == nil || cost < best.Cost {
				best = &cand
				bestIdx = idx
			}
		}
	}

	if len(eqMatched) >= 2 {
		names := make([]string, 0, len(eqMatched))
		mergeCost := 0.0
		for name, cost := range eqMatched {
			names = append(names, name)
			if cost > mergeCost {
				mergeCost = cost
			}
		}
		sort.Strings(names)
		// The intersection still pays the most expensive member's lookup,
		// but every further member only shrinks the set to hydrate.
		mergeCost *= 0.9
		cand := Candidate{IndexName: strings.Join(names, "+"), Cost: mergeCost,
			Reason: fmt.Sprintf("intersection of %d index seeks", len(names))}
		candidates = append(candidates, cand)
		if best == nil || mergeCost < best.Cost {
			plan := p.finish(IndexMerge, names[0], mergeCost, estimateRows(bestIdx), candidates, where, orderBy, skip, take,
				cand.Reason)
			plan.MergeIndexes = names
			return plan
		}
	}

	if best != nil {
		return p.finish(IndexSeek, bestIdx.Name(), best.Cost, estimateRows(bestIdx), candidates, where, orderBy, skip, take,
			best.Reason)
	}

	for _, idx := range p.manager.All() {
		pidx, pok := idx.(propertyIndex)
		if !pok {
			continue
		}
		if _, rok := idx.(rangeOps); !rok {
			continue
		}
		for _, c := range rangeConditions {
			if !strings.EqualFold(c.Property, pidx.Property()) {
				continue
			}
			cost := math.Log2(float64(idx.Len()) + 1)
			reason := fmt.Sprintf("scalar index range on %s, selectivity log2(%d+1)", pidx.Property(), idx.Len())
			if orderBy != nil && strings.EqualFold(orderBy.Property, pidx.Property()) {
				cost *= 0.3
				reason += ", satisfies ORDER BY (x0.3)"
			}
			if idx.IsNative() {
				cost *= 0.5
				reason += ", native index (x0.5)"
			}
			candidates = append(candidates, Candidate{IndexName: idx.Name(), Cost: cost, Reason: reason})
			return p.finish(IndexRangeScan, idx.Name(), cost, estimateRows(idx), candidates, where, orderBy, skip, take,
				reason)
		}
	}

	if orderBy != nil {
		for _, idx := range p.manager.All() {
			pidx, ok := idx.(propertyIndex)
			if !ok || !strings.EqualFold(orderBy.Property, pidx.Property()) {
				continue
			}
			cost := float64(n)
			if idx.IsNative() {
				cost *= 0.5
			}
			cand := Candidate{IndexName: idx.Name(), Cost: cost, Reason: "index scan for ordering only"}
			candidates = append(candidates, cand)
			return p.finish(IndexScan, idx.Name(), cost, n, candidates, where, orderBy, skip, take,
				"using index order, WHERE re-applied in full")
		}
	}

	cost := float64(n)
	candidates = append(candidates, Candidate{IndexName: "", Cost: cost, Reason: "no matching index"})
	return p.finish(FullScan, "", cost, n, candidates, where, orderBy, skip, take, "full scan over cache")
}

func estimateRows(idx index.Index) int {
	return idx.Len()
}

func (p *Planner) finish(strategy Strategy, indexName string, cost float64, rowsExamined int, candidates []Candidate,
	where Predicate, orderBy *OrderBy, skip, take int, explanation string) *Plan {

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Cost < candidates[j].Cost })
	metrics.QueryPlanCost.WithLabelValues(p.collection, string(strategy)).Observe(cost)

	return &Plan{
		Strategy:              strategy,
		IndexName:             indexName,
		Cost:                  cost,
		EstimatedRowsExamined: rowsExamined,
		EstimatedRowsReturned: rowsExamined,
		Explanation:           explanation,
		Candidates:            candidates,
		where:                 where,
		orderBy:               orderBy,
		skip:                  skip,
		take:                  take,
	}
}

// ExplainString formats a Plan for human inspection.
func ExplainString(plan *Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "strategy=%s index=%q cost=%.4f rows_examined=%d rows_returned=%d\n",
		plan.Strategy, plan.IndexName, plan.Cost, plan.EstimatedRowsExamined, plan.EstimatedRowsReturned)
	fmt.Fprintf(&b, "explanation: %s\n", plan.Explanation)
	for _, c := range plan.Candidates {
		fmt.Fprintf(&b, "  candidate index=%q cost=%.4f reason=%s\n", c.IndexName, c.Cost, c.Reason)
	}
	return b.String()
}
