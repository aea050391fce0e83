// Package query builds wire-level filter objects for the upstream content
// store from an abstract filter-expression tree. Callers compose filters with
// the constructor functions (Eq, In, And, ...) and serialize them with Build;
// the resulting map marshals to the Mongo-style query JSON the store consumes.
package query

import (
	"errors"
	"fmt"
	"strings"
)

// ComparisonOp is a field-level comparison operator.
type ComparisonOp string

// Supported comparison operators.
const (
	OpEqual          ComparisonOp = "$eq"
	OpNotEqual       ComparisonOp = "$ne"
	OpGreaterThan    ComparisonOp = "$gt"
	OpGreaterOrEqual ComparisonOp = "$gte"
	OpLessThan       ComparisonOp = "$lt"
	OpLessOrEqual    ComparisonOp = "$lte"
)

// ArrayOp is an operator comparing a field against a set of values.
type ArrayOp string

// Supported array operators.
const (
	OpIn    ArrayOp = "$in"
	OpNotIn ArrayOp = "$nin"
	OpAll   ArrayOp = "$all"
)

// LogicalOp combines multiple sub-filters.
type LogicalOp string

// Supported logical operators.
const (
	OpAnd LogicalOp = "$and"
	OpOr  LogicalOp = "$or"
	OpNor LogicalOp = "$nor"
)

// ErrEmptyFilter is returned when a logical filter has no sub-filters or a
// comparison filter has no field.
var ErrEmptyFilter = errors.New("empty filter")

// Filter is one node of the abstract filter-expression tree. The concrete
// implementations form a closed set; external packages compose them through
// the constructor functions only.
type Filter interface {
	// Wire translates the filter into the query object consumed by the
	// upstream store.
	Wire() (map[string]any, error)
}

// comparison matches a single field against a value.
type comparison struct {
	field string
	op    ComparisonOp
	value any
}

func (c comparison) Wire() (map[string]any, error) {
	if c.field == "" {
		return nil, fmt.Errorf("%w: comparison without field", ErrEmptyFilter)
	}
	return map[string]any{c.field: map[string]any{string(c.op): c.value}}, nil
}

// arrayMatch matches a single field against a set of values.
type arrayMatch struct {
	field  string
	op     ArrayOp
	values []any
}

func (a arrayMatch) Wire() (map[string]any, error) {
	if a.field == "" {
		return nil, fmt.Errorf("%w: array filter without field", ErrEmptyFilter)
	}
	// Normalize nil to an empty JSON array so the wire form is stable.
	values := a.values
	if values == nil {
		values = []any{}
	}
	return map[string]any{a.field: map[string]any{string(a.op): values}}, nil
}

// regexMatch matches a string field against a regular expression.
type regexMatch struct {
	field   string
	pattern string
}

func (r regexMatch) Wire() (map[string]any, error) {
	if r.field == "" {
		return nil, fmt.Errorf("%w: regex filter without field", ErrEmptyFilter)
	}
	return map[string]any{r.field: map[string]any{"$regex": r.pattern}}, nil
}

// logical combines sub-filters with $and, $or or $nor.
type logical struct {
	op      LogicalOp
	filters []Filter
}

func (l logical) Wire() (map[string]any, error) {
	if len(l.filters) == 0 {
		return nil, fmt.Errorf("%w: %s without sub-filters", ErrEmptyFilter, l.op)
	}
	subs := make([]any, 0, len(l.filters))
	for _, f := range l.filters {
		w, err := f.Wire()
		if err != nil {
			return nil, err
		}
		subs = append(subs, w)
	}
	return map[string]any{string(l.op): subs}, nil
}

// negation inverts a single comparison. The wire format nests $not inside the
// field selector, so negation only applies to field-level filters.
type negation struct {
	inner Filter
}

func (n negation) Wire() (map[string]any, error) {
	w, err := n.inner.Wire()
	if err != nil {
		return nil, err
	}
	if len(w) != 1 {
		return nil, fmt.Errorf("$not requires a single-field filter, got %d fields", len(w))
	}
	out := make(map[string]any, 1)
	for field, cond := range w {
		if strings.HasPrefix(field, "$") {
			return nil, fmt.Errorf("$not cannot wrap a %s filter", field)
		}
		out[field] = map[string]any{"$not": cond}
	}
	return out, nil
}

// Eq matches documents whose field equals value.
func Eq(field string, value any) Filter { return comparison{field, OpEqual, value} }

// NotEq matches documents whose field does not equal value.
func NotEq(field string, value any) Filter { return comparison{field, OpNotEqual, value} }

// Gt matches documents whose field is greater than value.
func Gt(field string, value any) Filter { return comparison{field, OpGreaterThan, value} }

// Gte matches documents whose field is greater than or equal to value.
func Gte(field string, value any) Filter { return comparison{field, OpGreaterOrEqual, value} }

// Lt matches documents whose field is less than value.
func Lt(field string, value any) Filter { return comparison{field, OpLessThan, value} }

// Lte matches documents whose field is less than or equal to value.
func Lte(field string, value any) Filter { return comparison{field, OpLessOrEqual, value} }

// In matches documents whose field is any of values.
func In(field string, values ...any) Filter { return arrayMatch{field, OpIn, values} }

// NotIn matches documents whose field is none of values.
func NotIn(field string, values ...any) Filter { return arrayMatch{field, OpNotIn, values} }

// All matches documents whose array field contains every one of values.
func All(field string, values ...any) Filter { return arrayMatch{field, OpAll, values} }

// Regex matches documents whose string field matches pattern.
func Regex(field, pattern string) Filter { return regexMatch{field, pattern} }

// And combines filters so that all must match.
func And(filters ...Filter) Filter { return logical{OpAnd, filters} }

// Or combines filters so that at least one must match.
func Or(filters ...Filter) Filter { return logical{OpOr, filters} }

// Nor combines filters so that none may match.
func Nor(filters ...Filter) Filter { return logical{OpNor, filters} }

// Not inverts a single field-level filter.
func Not(filter Filter) Filter { return negation{filter} }

// Build translates every filter into its wire form. It is the entry point the
// mapping engine uses to produce the "identifier in batch" resolution query.
func Build(filters []Filter) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(filters))
	for _, f := range filters {
		w, err := f.Wire()
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}
