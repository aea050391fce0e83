package query

import (
	"errors"
	"reflect"
	"testing"
)

func TestFilterWire(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   map[string]any
	}{
		{
			"eq",
			Eq("fsType", "Dataset"),
			map[string]any{"fsType": map[string]any{"$eq": "Dataset"}},
		},
		{
			"not eq",
			NotEq("schema", "news"),
			map[string]any{"schema": map[string]any{"$ne": "news"}},
		},
		{
			"gt",
			Gt("revision", 4),
			map[string]any{"revision": map[string]any{"$gt": 4}},
		},
		{
			"lte",
			Lte("revision", 9),
			map[string]any{"revision": map[string]any{"$lte": 9}},
		},
		{
			"in",
			In("identifier", "a", "b"),
			map[string]any{"identifier": map[string]any{"$in": []any{"a", "b"}}},
		},
		{
			"in without values",
			In("identifier"),
			map[string]any{"identifier": map[string]any{"$in": []any{}}},
		},
		{
			"nin",
			NotIn("identifier", "a"),
			map[string]any{"identifier": map[string]any{"$nin": []any{"a"}}},
		},
		{
			"all",
			All("tags", "x", "y"),
			map[string]any{"tags": map[string]any{"$all": []any{"x", "y"}}},
		},
		{
			"regex",
			Regex("name", "^intro"),
			map[string]any{"name": map[string]any{"$regex": "^intro"}},
		},
		{
			"and",
			And(Eq("fsType", "Dataset"), Eq("schema", "news")),
			map[string]any{"$and": []any{
				map[string]any{"fsType": map[string]any{"$eq": "Dataset"}},
				map[string]any{"schema": map[string]any{"$eq": "news"}},
			}},
		},
		{
			"or",
			Or(Eq("a", 1), Eq("b", 2)),
			map[string]any{"$or": []any{
				map[string]any{"a": map[string]any{"$eq": 1}},
				map[string]any{"b": map[string]any{"$eq": 2}},
			}},
		},
		{
			"nor",
			Nor(Eq("a", 1)),
			map[string]any{"$nor": []any{
				map[string]any{"a": map[string]any{"$eq": 1}},
			}},
		},
		{
			"not wraps a comparison",
			Not(Eq("fsType", "Media")),
			map[string]any{"fsType": map[string]any{"$not": map[string]any{"$eq": "Media"}}},
		},
		{
			"nested logical",
			And(Or(Eq("a", 1), Eq("b", 2)), In("c", 3)),
			map[string]any{"$and": []any{
				map[string]any{"$or": []any{
					map[string]any{"a": map[string]any{"$eq": 1}},
					map[string]any{"b": map[string]any{"$eq": 2}},
				}},
				map[string]any{"c": map[string]any{"$in": []any{3}}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.filter.Wire()
			if err != nil {
				t.Fatalf("Wire() returned error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Wire() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestFilterWire_Errors(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
	}{
		{"comparison without field", Eq("", 1)},
		{"array without field", In("", 1)},
		{"regex without field", Regex("", "x")},
		{"and without sub-filters", And()},
		{"not over logical", Not(And(Eq("a", 1), Eq("b", 2)))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.filter.Wire(); err == nil {
				t.Error("expected error, got none")
			}
		})
	}
}

func TestBuild(t *testing.T) {
	wire, err := Build([]Filter{Eq("fsType", "Dataset"), In("identifier", "a")})
	if err != nil {
		t.Fatalf("Build() returned error: %v", err)
	}
	if len(wire) != 2 {
		t.Fatalf("expected 2 wire filters, got %d", len(wire))
	}

	if _, err := Build([]Filter{And()}); !errors.Is(err, ErrEmptyFilter) {
		t.Errorf("expected ErrEmptyFilter, got %v", err)
	}
}

func TestDecode(t *testing.T) {
	raw := []map[string]any{
		{"field": "fsType", "operator": "$eq", "value": "Dataset"},
		{"operator": "$or", "filters": []any{
			map[string]any{"field": "schema", "operator": "$eq", "value": "news"},
			map[string]any{"field": "identifier", "operator": "$in", "values": []any{"a", "b"}},
		}},
		{"operator": "$not", "filter": map[string]any{"field": "fsType", "operator": "$eq", "value": "Media"}},
		{"field": "name", "operator": "$regex", "pattern": "^intro"},
	}

	filters, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() returned error: %v", err)
	}
	if len(filters) != 4 {
		t.Fatalf("expected 4 filters, got %d", len(filters))
	}

	wire, err := Build(filters)
	if err != nil {
		t.Fatalf("Build() returned error: %v", err)
	}

	want := []map[string]any{
		{"fsType": map[string]any{"$eq": "Dataset"}},
		{"$or": []any{
			map[string]any{"schema": map[string]any{"$eq": "news"}},
			map[string]any{"identifier": map[string]any{"$in": []any{"a", "b"}}},
		}},
		{"fsType": map[string]any{"$not": map[string]any{"$eq": "Media"}}},
		{"name": map[string]any{"$regex": "^intro"}},
	}
	if !reflect.DeepEqual(wire, want) {
		t.Errorf("decoded wire = %#v, want %#v", wire, want)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  []map[string]any
	}{
		{"missing operator", []map[string]any{{"field": "a", "value": 1}}},
		{"unsupported operator", []map[string]any{{"field": "a", "operator": "$explode", "value": 1}}},
		{"missing field", []map[string]any{{"operator": "$eq", "value": 1}}},
		{"logical without filters", []map[string]any{{"operator": "$and"}}},
		{"not without filter", []map[string]any{{"operator": "$not"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.raw); err == nil {
				t.Error("expected error, got none")
			}
		})
	}
}
