package query

import (
	"fmt"
)

// Decode converts the JSON representation of a filter-expression tree, as
// received by the proxy layer, back into Filter values. Each node is either
//
//	{"operator": "$and", "filters": [ ... ]}
//
// for logical nodes, or
//
//	{"field": "...", "operator": "$eq", "value": ...}
//	{"field": "...", "operator": "$in", "values": [ ... ]}
//	{"field": "...", "operator": "$regex", "pattern": "..."}
//
// for field-level nodes.
func Decode(raw []map[string]any) ([]Filter, error) {
	filters := make([]Filter, 0, len(raw))
	for i, node := range raw {
		f, err := decodeNode(node)
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
		filters = append(filters, f)
	}
	return filters, nil
}

func decodeNode(node map[string]any) (Filter, error) {
	op, _ := node["operator"].(string)
	if op == "" {
		return nil, fmt.Errorf("missing operator")
	}

	switch LogicalOp(op) {
	case OpAnd, OpOr, OpNor:
		rawSubs, ok := node["filters"].([]any)
		if !ok {
			return nil, fmt.Errorf("%s requires a filters array", op)
		}
		subs := make([]Filter, 0, len(rawSubs))
		for _, rs := range rawSubs {
			sub, ok := rs.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s sub-filter must be an object", op)
			}
			f, err := decodeNode(sub)
			if err != nil {
				return nil, err
			}
			subs = append(subs, f)
		}
		return logical{LogicalOp(op), subs}, nil
	}

	if op == "$not" {
		sub, ok := node["filter"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("$not requires a filter object")
		}
		inner, err := decodeNode(sub)
		if err != nil {
			return nil, err
		}
		return negation{inner}, nil
	}

	field, _ := node["field"].(string)
	if field == "" {
		return nil, fmt.Errorf("missing field for operator %s", op)
	}

	switch ArrayOp(op) {
	case OpIn, OpNotIn, OpAll:
		values, _ := node["values"].([]any)
		return arrayMatch{field, ArrayOp(op), values}, nil
	}

	if op == "$regex" {
		pattern, _ := node["pattern"].(string)
		return regexMatch{field, pattern}, nil
	}

	switch ComparisonOp(op) {
	case OpEqual, OpNotEqual, OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual:
		return comparison{field, ComparisonOp(op), node["value"]}, nil
	}

	return nil, fmt.Errorf("unsupported operator %q", op)
}
