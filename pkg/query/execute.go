package query

import (
	"sort"
	"strings"

	"github.com/cuemby/acorndb/pkg/index"
)

// Hydrate fetches the decoded document for id, for post-lookup predicate
// re-application and for ordering.
type Hydrate func(id string) (doc any, ok bool)

// Execute runs plan against the owning Collection's indexes and cache: it
// gathers candidate ids per the chosen strategy, hydrates each, re-applies
// the WHERE predicate for correctness (the index is a filter, not a proof),
// orders, then applies skip/take.
func (p *Planner) Execute(plan *Plan, hydrate Hydrate, fullScanIDs func() []string) []string {
	var ids []string

	switch plan.Strategy {
	case IndexSeek:
		if plan.IndexName == p.manager.Identity().Name() {
			ids = p.identitySeekIDs(plan)
		} else if idx, ok := p.manager.Get(plan.IndexName); ok {
			if sops, ok := idx.(scalarOps); ok {
				ids = p.seekViaScalar(plan, sops)
			}
		}
	case IndexRangeScan:
		if idx, ok := p.manager.Get(plan.IndexName); ok {
			ids = p.rangeScanIDs(plan, idx)
		}
	case IndexMerge:
		ids = p.mergeIDs(plan)
	case IndexScan:
		if idx, ok := p.manager.Get(plan.IndexName); ok {
			if sops, ok := idx.(scalarOps); ok {
				ids = sops.SortedAny(!plan.orderBy.Descending)
			}
		}
	default:
		ids = fullScanIDs()
	}

	type scored struct {
		id  string
		doc any
	}
	var matched []scored
	for _, id := range ids {
		doc, ok := hydrate(id)
		if !ok {
			continue
		}
		if plan.where != nil && !plan.where.Eval(doc) {
			continue
		}
		matched = append(matched, scored{id: id, doc: doc})
	}

	if plan.orderBy != nil && plan.Strategy != IndexScan {
		sort.SliceStable(matched, func(i, j int) bool {
			a, b := plan.orderBy.Get(matched[i].doc), plan.orderBy.Get(matched[j].doc)
			lt, gt := plan.orderBy.Less(a, b), plan.orderBy.Less(b, a)
			if !lt && !gt {
				// Equal sort keys: break ties by id so full-scan order
				// (which may come from unordered map iteration) never
				// leaks into the observable result.
				return matched[i].id < matched[j].id
			}
			if plan.orderBy.Descending {
				return gt
			}
			return lt
		})
	}

	out := make([]string, len(matched))
	for i, m := range matched {
		out[i] = m.id
	}

	if plan.skip > 0 {
		if plan.skip >= len(out) {
			return nil
		}
		out = out[plan.skip:]
	}
	if plan.take > 0 && plan.take < len(out) {
		out = out[:plan.take]
	}
	return out
}

func (p *Planner) identitySeekIDs(plan *Plan) []string {
	for _, c := range plan.where.Conditions() {
		if c.Op != OpEqual {
			continue
		}
		if id, ok := c.Value.(string); ok {
			if p.manager.Identity().Contains(id) {
				return []string{id}
			}
			return nil
		}
	}
	return nil
}

// rangeScanIDs gathers candidates for an IndexRangeScan: the WHERE tree's
// range conditions on the chosen index's property become the inclusive
// bounds, with open sides left to the index's own extremes. Exclusivity of
// strict < and > is restored by the predicate re-application in Execute.
func (p *Planner) rangeScanIDs(plan *Plan, idx index.Index) []string {
	pidx, ok := idx.(propertyIndex)
	if !ok {
		return nil
	}
	rops, ok := idx.(rangeOps)
	if !ok {
		return nil
	}

	var min, max any
	var hasMin, hasMax bool
	for _, c := range plan.where.Conditions() {
		if !strings.EqualFold(c.Property, pidx.Property()) {
			continue
		}
		switch c.Op {
		case OpGreaterThan, OpGreaterEqual:
			min, hasMin = c.Value, true
		case OpLessThan, OpLessEqual:
			max, hasMax = c.Value, true
		}
	}
	return rops.RangeAny(min, max, hasMin, hasMax)
}

// mergeIDs intersects the per-index seek results of an IndexMerge plan.
func (p *Planner) mergeIDs(plan *Plan) []string {
	var result map[string]struct{}
	for _, name := range plan.MergeIndexes {
		idx, ok := p.manager.Get(name)
		if !ok {
			return nil
		}
		pidx, pok := idx.(propertyIndex)
		sops, sok := idx.(scalarOps)
		if !pok || !sok {
			return nil
		}

		var ids []string
		for _, c := range plan.where.Conditions() {
			if c.Op == OpEqual && strings.EqualFold(c.Property, pidx.Property()) {
				ids = sops.LookupAny(c.Value)
				break
			}
		}

		next := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if result == nil {
				next[id] = struct{}{}
				continue
			}
			if _, kept := result[id]; kept {
				next[id] = struct{}{}
			}
		}
		result = next
		if len(result) == 0 {
			return nil
		}
	}

	out := make([]string, 0, len(result))
	for id := range result {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (p *Planner) seekViaScalar(plan *Plan, sops scalarOps) []string {
	for _, c := range plan.where.Conditions() {
		if c.Op == OpEqual {
			if ids := sops.LookupAny(c.Value); ids != nil {
				return ids
			}
		}
	}
	return nil
}
