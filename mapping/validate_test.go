package mapping_test

import (
	"errors"
	"testing"

	"github.com/xraph/conduit/mapping"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		rules   []mapping.Rule
		wantErr bool
	}{
		{"empty", nil, false},
		{"copy", []mapping.Rule{{Source: "a", Target: "b", Transform: "upper"}}, false},
		{"map_array", []mapping.Rule{{
			Source: "items", Target: "lines", Op: mapping.OpMapArray,
			ItemRules: []mapping.Rule{{Source: "qty", Target: "quantity", Transform: "to_int"}},
		}}, false},
		{"missing target", []mapping.Rule{{Source: "a"}}, true},
		{"dot target", []mapping.Rule{{Source: "a", Target: "."}}, true},
		{"unknown transform", []mapping.Rule{{Source: "a", Target: "b", Transform: "reverse"}}, true},
		{"unknown op", []mapping.Rule{{Source: "a", Target: "b", Op: "merge"}}, true},
		{"bad item rule", []mapping.Rule{{
			Source: "items", Target: "lines", Op: mapping.OpMapArray,
			ItemRules: []mapping.Rule{{Source: "qty", Target: "q", Transform: "nope"}},
		}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapping.Validate(tt.rules)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, mapping.ErrMapping) {
				t.Errorf("err = %v, want ErrMapping", err)
			}
		})
	}
}
