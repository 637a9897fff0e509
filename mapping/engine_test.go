package mapping_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/xraph/conduit/mapping"
)

func decode(t *testing.T, s string) any {
	t.Helper()

	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("decode %s: %v", s, err)
	}
	return v
}

func orderRules() []mapping.Rule {
	return []mapping.Rule{
		{Source: "order.id", Target: "order_number"},
		{Source: "order.total", Target: "total_amount", Transform: "float"},
		{Source: "order.currency", Target: "currency", Default: "USD"},
		{
			Source: "order.line_items",
			Target: "items",
			Op:     mapping.OpMapArray,
			ItemRules: []mapping.Rule{
				{Source: "sku", Target: "sku"},
				{Source: "qty", Target: "qty", Transform: "int", Default: 1},
				{Source: "price", Target: "unit_price", Transform: "float", Default: 0},
			},
		},
	}
}

func TestApplyOrderExample(t *testing.T) {
	src := decode(t, `{"order":{"id":"SO-2001","total":"19.95","line_items":[{"sku":"SKU-1","qty":"2","price":"4.50"},{"sku":"SKU-2"}]}}`)

	got, err := mapping.Apply(src, orderRules())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	want := map[string]any{
		"order_number": "SO-2001",
		"total_amount": 19.95,
		"currency":     "USD",
		"items": []any{
			map[string]any{"sku": "SKU-1", "qty": int64(2), "unit_price": 4.5},
			map[string]any{"sku": "SKU-2", "qty": int64(1), "unit_price": 0.0},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Apply mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyDeterministicAndPure(t *testing.T) {
	raw := `{"a":{"b":[{"c":[{"d":"x"},{"d":"y"}]},{"c":[]}]}}`
	src := decode(t, raw)
	rules := []mapping.Rule{
		{Source: "a.b", Target: "outer", Op: mapping.OpMapArray, ItemRules: []mapping.Rule{
			{Source: "c", Target: "inner", Op: mapping.OpMapArray, ItemRules: []mapping.Rule{
				{Source: "d", Target: "value", Transform: "upper"},
			}},
		}},
		{Source: "a", Target: "copy"},
	}

	first, err := mapping.Apply(src, rules)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	second, err := mapping.Apply(src, rules)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("non-deterministic output:\n%s", diff)
	}

	// Mutating the output must not reach the input.
	first["copy"].(map[string]any)["b"] = "changed"
	if diff := cmp.Diff(decode(t, raw), src); diff != "" {
		t.Fatalf("input mutated:\n%s", diff)
	}

	inner := first["outer"].([]any)[0].(map[string]any)["inner"].([]any)
	if got := inner[1].(map[string]any)["value"]; got != "Y" {
		t.Fatalf("nested value = %v, want Y", got)
	}
}

func TestApplyCopyResolution(t *testing.T) {
	tests := []struct {
		name string
		src  string
		rule mapping.Rule
		want map[string]any
	}{
		{
			name: "missing without default leaves target unset",
			src:  `{}`,
			rule: mapping.Rule{Source: "a", Target: "b"},
			want: map[string]any{},
		},
		{
			name: "null without default is copied",
			src:  `{"a":null}`,
			rule: mapping.Rule{Source: "a", Target: "b", Transform: "to_int"},
			want: map[string]any{"b": nil},
		},
		{
			name: "null with default uses default",
			src:  `{"a":null}`,
			rule: mapping.Rule{Source: "a", Target: "b", Default: "fallback"},
			want: map[string]any{"b": "fallback"},
		},
		{
			name: "failed transform retried on default",
			src:  `{"a":"abc"}`,
			rule: mapping.Rule{Source: "a", Target: "b", Transform: "to_float", Default: "1.5"},
			want: map[string]any{"b": 1.5},
		},
		{
			name: "whole value path",
			src:  `{"a":1}`,
			rule: mapping.Rule{Source: ".", Target: "all"},
			want: map[string]any{"all": map[string]any{"a": 1.0}},
		},
		{
			name: "list index in source and target",
			src:  `{"a":["x","y"]}`,
			rule: mapping.Rule{Source: "a.1", Target: "b.2.c", Transform: "upper"},
			want: map[string]any{"b": []any{nil, nil, map[string]any{"c": "Y"}}},
		},
		{
			name: "lower and to_str",
			src:  `{"a":"MiXeD"}`,
			rule: mapping.Rule{Source: "a", Target: "b", Transform: "lower"},
			want: map[string]any{"b": "mixed"},
		},
		{
			name: "to_str of number",
			src:  `{"a":12.5}`,
			rule: mapping.Rule{Source: "a", Target: "b", Transform: "to_str"},
			want: map[string]any{"b": "12.5"},
		},
		{
			name: "map_array over non sequence yields empty",
			src:  `{"a":"scalar"}`,
			rule: mapping.Rule{Source: "a", Target: "b", Op: mapping.OpMapArray},
			want: map[string]any{"b": []any{}},
		},
		{
			name: "map_array falls back to default",
			src:  `{}`,
			rule: mapping.Rule{
				Source:    "a",
				Target:    "b",
				Op:        mapping.OpMapArray,
				Default:   []any{map[string]any{"v": "1"}},
				ItemRules: []mapping.Rule{{Source: "v", Target: "n", Transform: "int"}},
			},
			want: map[string]any{"b": []any{map[string]any{"n": int64(1)}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mapping.Apply(decode(t, tt.src), []mapping.Rule{tt.rule})
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestApplyErrors(t *testing.T) {
	src := map[string]any{"a": "abc", "n": 1.0}

	t.Run("unknown op", func(t *testing.T) {
		_, err := mapping.Apply(src, []mapping.Rule{{Source: "a", Target: "b", Op: "explode"}})
		var re *mapping.RuleError
		if !errors.As(err, &re) || !errors.Is(err, mapping.ErrMapping) {
			t.Fatalf("err = %v, want RuleError", err)
		}
		if re.Op != "explode" {
			t.Fatalf("Op = %q, want explode", re.Op)
		}
	})

	t.Run("missing target", func(t *testing.T) {
		_, err := mapping.Apply(src, []mapping.Rule{{Source: "a"}})
		if !errors.Is(err, mapping.ErrMapping) {
			t.Fatalf("err = %v, want ErrMapping", err)
		}
	})

	t.Run("unknown transform", func(t *testing.T) {
		_, err := mapping.Apply(src, []mapping.Rule{{Source: "a", Target: "b", Transform: "reverse"}})
		var te *mapping.TransformError
		if !errors.As(err, &te) || te.Name != "reverse" {
			t.Fatalf("err = %v, want TransformError", err)
		}
	})

	t.Run("bad conversion without default", func(t *testing.T) {
		_, err := mapping.Apply(src, []mapping.Rule{{Source: "a", Target: "b", Transform: "to_int"}})
		var te *mapping.TransformError
		if !errors.As(err, &te) {
			t.Fatalf("err = %v, want TransformError", err)
		}
	})

	t.Run("write through scalar", func(t *testing.T) {
		_, err := mapping.Apply(src, []mapping.Rule{
			{Source: "a", Target: "x"},
			{Source: "n", Target: "x.y"},
		})
		var pe *mapping.PathError
		if !errors.As(err, &pe) {
			t.Fatalf("err = %v, want PathError", err)
		}
	})
}

func TestGetPath(t *testing.T) {
	doc := map[string]any{"a": []any{map[string]any{"b": "c"}}, "s": "scalar"}

	tests := []struct {
		path  string
		want  any
		found bool
	}{
		{"a.0.b", "c", true},
		{"a.1.b", nil, false},
		{"a.x", nil, false},
		{"a.-1", nil, false},
		{"s.deeper", nil, false},
		{"missing", nil, false},
	}

	for _, tt := range tests {
		got, found := mapping.GetPath(doc, tt.path)
		if found != tt.found || got != tt.want {
			t.Errorf("GetPath(%q) = %v, %v; want %v, %v", tt.path, got, found, tt.want, tt.found)
		}
	}
}
