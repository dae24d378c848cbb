// Package query implements the predicate DSL and cost-based Query Planner
// that turn a WHERE/ORDER BY expression into an execution plan over a
// Collection's indexes. Predicates are a small sum type (Equal, Cmp, And,
// Or) rather than an expression tree compiled from LINQ-style lambdas: the
// caller supplies plain accessor closures instead of a tree the planner
// would otherwise need to introspect via reflection.
package query

import "reflect"

// Op is a comparison operator a Cmp predicate or planner Condition uses.
type Op string

const (
	OpEqual        Op = "="
	OpNotEqual     Op = "!="
	OpLessThan     Op = "<"
	OpLessEqual    Op = "<="
	OpGreaterThan  Op = ">"
	OpGreaterEqual Op = ">="
)

// Condition is one (property, op, value, is_constant) fact the planner
// extracts from a compiled Predicate tree.
type Condition struct {
	Property   string
	Op         Op
	Value      any
	IsConstant bool
}

// Predicate is the compiled form of a WHERE clause: it can evaluate itself
// against a decoded document and report the flat conditions it's built
// from, for the planner's analyzer.
type Predicate interface {
	Eval(doc any) bool
	Conditions() []Condition
}

// Equal matches documents whose property, extracted by get, equals value.
type Equal struct {
	Property string
	Get      func(doc any) any
	Value    any
}

func (e Equal) Eval(doc any) bool {
	return reflect.DeepEqual(e.Get(doc), e.Value)
}

func (e Equal) Conditions() []Condition {
	return []Condition{{Property: e.Property, Op: OpEqual, Value: e.Value, IsConstant: true}}
}

// Comparator orders two values extracted for the same property, returning
// <0, 0, or >0.
type Comparator func(a, b any) int

// Cmp matches documents whose property, compared via compare, satisfies op
// against value. Swapped operands (value op property) are expressed by
// choosing the complementary Op at construction time.
type Cmp struct {
	Property string
	Get      func(doc any) any
	Op       Op
	Value    any
	Compare  Comparator
}

func (c Cmp) Eval(doc any) bool {
	result := c.Compare(c.Get(doc), c.Value)
	switch c.Op {
	case OpEqual:
		return result == 0
	case OpNotEqual:
		return result != 0
	case OpLessThan:
		return result < 0
	case OpLessEqual:
		return result <= 0
	case OpGreaterThan:
		return result > 0
	case OpGreaterEqual:
		return result >= 0
	default:
		return false
	}
}

func (c Cmp) Conditions() []Condition {
	return []Condition{{Property: c.Property, Op: c.Op, Value: c.Value, IsConstant: true}}
}

// And matches documents satisfying both operands.
type And struct {
	Left, Right Predicate
}

func (a And) Eval(doc any) bool {
	return a.Left.Eval(doc) && a.Right.Eval(doc)
}

func (a And) Conditions() []Condition {
	return append(a.Left.Conditions(), a.Right.Conditions()...)
}

// Or matches documents satisfying either operand. Or conditions are not
// usable for index selection (only And/single conditions are), so the
// planner treats any predicate containing Or as full-scan-only.
type Or struct {
	Left, Right Predicate
}

func (o Or) Eval(doc any) bool {
	return o.Left.Eval(doc) || o.Right.Eval(doc)
}

func (o Or) Conditions() []Condition {
	// Conditions under an Or can't be safely intersected by an index lookup
	// (the match set is a union, not a filter-and-verify subset), so they're
	// reported but the planner must not build a seek from them alone.
	return append(o.Left.Conditions(), o.Right.Conditions()...)
}

// ContainsOr reports whether pred has an Or anywhere in its tree.
func ContainsOr(pred Predicate) bool {
	switch p := pred.(type) {
	case Or:
		return true
	case And:
		return ContainsOr(p.Left) || ContainsOr(p.Right)
	default:
		return false
	}
}

// OrderBy is a single-property ordering applied after the WHERE predicate.
type OrderBy struct {
	Property   string
	Get        func(doc any) any
	Less       func(a, b any) bool
	Descending bool
}
