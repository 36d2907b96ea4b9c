package playground

import (
	"strings"
	"testing"
)

func TestFormatOptimizeErrors(t *testing.T) {
	tests := []struct {
		name    string
		warning string
		want    []string
	}{
		{
			name:    "widening",
			warning: "loop did not settle after 8 iterations, widening to unknown",
			want:    []string{"A loop did not settle", "How to fix: Raise maxLoopIterations"},
		},
		{
			name:    "fixpoint",
			warning: "no fixpoint after 16 passes; the last pass is used unseeded",
			want:    []string{"before the function reached a fixpoint", "How to fix: Raise maxPasses"},
		},
		{
			name:    "parse_error_location",
			warning: `f: line 4: unknown operator "Plus"`,
			want:    []string{"Location: line 4", "Add, FloorDiv", `Details: f: line 4: unknown operator "Plus"`},
		},
		{
			name:    "walk_location",
			warning: `[{0xc000 components <nil>} {0xc001 schemas 0xc002}]: optimization of f failed: break outside loop`,
			want:    []string{"Location: components.schemas", "not inside a loop", "Details: optimization of f failed"},
		},
		{
			name:    "unclassified",
			warning: "something else",
			want:    []string{"- Optimization error.", "Details: something else"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatOptimizeErrors([]string{tt.warning})
			if !strings.HasPrefix(got, "Optimization failed (strict mode).\n") {
				t.Errorf("missing header:\n%s", got)
			}
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("output lacks %q:\n%s", want, got)
				}
			}
		})
	}

	if got := FormatOptimizeErrors(nil); !strings.Contains(got, "no additional details") {
		t.Errorf("empty warnings gave %q", got)
	}
}
