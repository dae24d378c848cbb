package collection

import (
	"time"

	"github.com/cuemby/acorndb/pkg/query"
)

// Query returns a fluent query object over this Collection, the
// counterpart to direct Get/ExportChanges calls for predicate-driven reads
// that should go through the Query Planner.
func (c *Collection[T]) Query() *Query[T] {
	return &Query[T]{c: c}
}

// Query is a fluent builder that accumulates a WHERE predicate, an ORDER BY,
// an index hint, and a skip/take window, then asks the Collection's Planner
// to choose and execute a strategy over its indexes.
type Query[T any] struct {
	c         *Collection[T]
	where     query.Predicate
	orderBy   *query.OrderBy
	indexHint string
	skip      int
	take      int
}

// Where sets (or, if called again, ANDs in) the WHERE predicate.
func (q *Query[T]) Where(pred query.Predicate) *Query[T] {
	if q.where == nil {
		q.where = pred
	} else {
		q.where = query.And{Left: q.where, Right: pred}
	}
	return q
}

// OrderBy sets the result ordering.
func (q *Query[T]) OrderBy(ob query.OrderBy) *Query[T] {
	q.orderBy = &ob
	return q
}

// UseIndex hints the planner to use a specific named index directly,
// bypassing cost comparison.
func (q *Query[T]) UseIndex(name string) *Query[T] {
	q.indexHint = name
	return q
}

// Skip discards the first n matching ids before Take is applied.
func (q *Query[T]) Skip(n int) *Query[T] {
	q.skip = n
	return q
}

// Take limits the result to at most n documents.
func (q *Query[T]) Take(n int) *Query[T] {
	q.take = n
	return q
}

// Explain builds the execution plan without running it, for diagnostics.
func (q *Query[T]) Explain() *query.Plan {
	return q.c.planner.Explain(q.where, q.orderBy, q.skip, q.take, q.indexHint)
}

// Run executes the query and returns the matching documents in order.
func (q *Query[T]) Run() ([]T, error) {
	plan := q.Explain()

	now := time.Now()
	hydrate := func(id string) (any, bool) {
		rec, ok := q.c.cacheMgr.Peek(id)
		if !ok || rec.Expired(now) {
			return nil, false
		}
		doc, err := decodeDoc[T](rec.Payload)
		if err != nil {
			return nil, false
		}
		return doc, true
	}
	fullScanIDs := func() []string {
		all := q.c.cacheMgr.All()
		ids := make([]string, 0, len(all))
		for id := range all {
			ids = append(ids, id)
		}
		return ids
	}

	ids := q.c.planner.Execute(plan, hydrate, fullScanIDs)
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		rec, ok := q.c.cacheMgr.Peek(id)
		if !ok || rec.Expired(now) {
			continue
		}
		doc, err := decodeDoc[T](rec.Payload)
		if err != nil {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}
