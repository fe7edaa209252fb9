package diva

import (
	"strings"
	"testing"
)

func TestEstimateResponseSize(t *testing.T) {
	tests := []struct {
		name        string
		view        string
		count       int
		fields      []string
		wantTokens  int
		wantWarning bool
	}{
		{"small request no warning", "authorizations", 100, nil, 10000, false},
		{"large request warns", "authorizations", 500, nil, 50000, true},
		{"unknown view uses default", "somethingelse", 10, nil, 1000, false},
		{"chargebacks are heavy", "chargebacks", 150, nil, 30000, true},
		{"fields cut the estimate", "authorizations", 500, []string{"transaction_token"}, 20000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, warning := EstimateResponseSize(tt.view, tt.count, tt.fields)
			if tokens != tt.wantTokens {
				t.Errorf("tokens = %d, want %d", tokens, tt.wantTokens)
			}
			if (warning != "") != tt.wantWarning {
				t.Errorf("warning = %q, wantWarning %v", warning, tt.wantWarning)
			}
			if tt.wantWarning && !strings.Contains(warning, "reduce 'count'") {
				t.Errorf("warning %q missing guidance", warning)
			}
		})
	}
}
