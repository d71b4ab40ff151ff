package rules

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestFindingID(t *testing.T) {
	tests := []struct {
		name     string
		ruleID   string
		evidence any
		want     string
	}{
		{"nil evidence hashes the empty object", "r1", nil, "r1:5465b825"},
		{"empty map equals nil", "r1", map[string]any{}, "r1:5465b825"},
		{"keys are sorted", "r2", map[string]any{"b": "x", "a": 1}, "r2:2375b4fd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindingID(tt.ruleID, tt.evidence); got != tt.want {
				t.Errorf("FindingID() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFindingIDStructAndMapAgree(t *testing.T) {
	type payload struct {
		Zeta  string `json:"zeta"`
		Alpha int    `json:"alpha"`
	}

	fromStruct := FindingID("r", payload{Zeta: "z", Alpha: 3})
	fromMap := FindingID("r", map[string]any{"alpha": 3, "zeta": "z"})
	if fromStruct != fromMap {
		t.Errorf("struct field order leaked into identity: %s vs %s", fromStruct, fromMap)
	}
}

func TestFindingIDSensitivity(t *testing.T) {
	a := FindingID("r", map[string]any{"total": decimal.RequireFromString("100.5")})
	b := FindingID("r", map[string]any{"total": decimal.RequireFromString("100.6")})
	if a == b {
		t.Error("different evidence should produce different ids")
	}

	c := FindingID("other", map[string]any{"total": decimal.RequireFromString("100.5")})
	if strings.TrimPrefix(a, "r:") != strings.TrimPrefix(c, "other:") {
		t.Error("hash part should depend only on evidence")
	}
}

func TestFindingIDHasNoPadding(t *testing.T) {
	id := FindingID("x", map[string]any{"n": 1})
	hash := strings.TrimPrefix(id, "x:")
	if hash == "" || strings.HasPrefix(hash, "0") || strings.ToLower(hash) != hash {
		t.Errorf("expected unpadded lowercase hex, got %q", hash)
	}
}
