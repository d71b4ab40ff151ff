package report

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name  string
		raw   any
		want  string
		valid bool
	}{
		{"parentheses negative", "(123.45)", "-123.45", true},
		{"empty string", "", "", false},
		{"whitespace only", "   ", "", false},
		{"nil", nil, "", false},
		{"currency and thousands", "$1,234.00", "1234", true},
		{"euro with space", "€ 1 234,00", "123400", true},
		{"negative currency in parentheses", "($2,500.10)", "-2500.1", true},
		{"plain negative", "-45.00", "-45", true},
		{"pound", "£99.99", "99.99", true},
		{"garbage", "n/a", "", false},
		{"only symbols", "$ ( )", "", false},
		{"two dots", "12.3.4", "", false},
		{"float", 12.5, "12.5", true},
		{"nan", math.NaN(), "", false},
		{"inf", math.Inf(-1), "", false},
		{"int", 42, "42", true},
		{"json number", json.Number("-7.25"), "-7.25", true},
		{"unsupported type", []string{"1"}, "", false},
		{"closing parenthesis only", "12)", "12", true},
		{"opening parenthesis only", "(12", "12", true},
		{"minus inside parentheses", "(-5)", "5", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseNumber(tt.raw)
			if ok != tt.valid {
				t.Fatalf("ParseNumber(%v) ok = %v, want %v", tt.raw, ok, tt.valid)
			}
			if tt.valid && !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ParseNumber(%v) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseNumberRoundTrip(t *testing.T) {
	values := []string{"0", "0.01", "-0.01", "1", "-1", "999.99", "1000", "-1234.56", "1234567.89", "-98765432.1"}

	for _, v := range values {
		n := decimal.RequireFromString(v)
		formatted := FormatAccounting(n)
		got, ok := ParseNumber(formatted)
		if !ok {
			t.Fatalf("ParseNumber(%q) returned absent", formatted)
		}
		if !got.Equal(n) {
			t.Errorf("round trip %s -> %q -> %s", v, formatted, got)
		}

		again, ok := ParseNumber(got.String())
		if !ok || !again.Equal(got) {
			t.Errorf("reparse of %s not idempotent: %s", got, again)
		}
	}
}

func TestFormatAccounting(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1234", "$1,234.00"},
		{"-1234.5", "($1,234.50)"},
		{"12", "$12.00"},
		{"1000000", "$1,000,000.00"},
		{"-0.001", "$0.00"},
	}

	for _, tt := range tests {
		if got := FormatAccounting(decimal.RequireFromString(tt.in)); got != tt.want {
			t.Errorf("FormatAccounting(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

const sampleReport = `{
  "Header": {"ReportName": "ProfitAndLoss", "StartPeriod": "2025-03-01", "EndPeriod": "2025-03-31"},
  "Columns": {"Column": [{"ColTitle": ""}, {"ColTitle": "Total"}]},
  "Rows": {"Row": [
    {
      "type": "Section", "group": "Income",
      "Header": {"ColData": [{"value": "Income"}, {"value": ""}]},
      "Rows": {"Row": [
        {"type": "Data", "ColData": [{"value": "Product Income - Retail", "id": "41"}, {"value": "1,500.00"}]},
        {"type": "Data", "ColData": [{"value": "Refunds", "id": "42"}, {"value": "(200.00)"}]}
      ]},
      "Summary": {"ColData": [{"value": "Total Income"}, {"value": "1300.00"}]}
    },
    {
      "type": "Section", "group": "Expenses",
      "Rows": {"Row": [
        {"type": "Data", "ColData": [{"value": "Uncategorized Expense", "id": "99"}, {"value": "$75.25"}]},
        {"type": "Data"}
      ]}
    },
    {"Summary": {"ColData": [{"value": "Net Income"}, {"value": "1224.75"}]}}
  ]}
}`

func loadSample(t *testing.T) *Report {
	t.Helper()
	var r Report
	if err := json.Unmarshal([]byte(sampleReport), &r); err != nil {
		t.Fatalf("failed to decode sample report: %v", err)
	}
	return &r
}

func TestFlatten(t *testing.T) {
	flat := loadSample(t).Flatten()

	want := []string{
		"Income",
		"Income > Product Income - Retail",
		"Income > Refunds",
		"Expenses",
		"Expenses > Uncategorized Expense",
		"Expenses > Data",
		"row",
	}
	if len(flat) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(flat))
	}
	for i, w := range want {
		if got := flat[i].JoinedPath(); got != w {
			t.Errorf("row %d path = %q, want %q", i, got, w)
		}
	}

	if flat[1].Label() != "Product Income - Retail" {
		t.Errorf("unexpected label %q", flat[1].Label())
	}
	if flat[0].Depth() != 0 || flat[1].Depth() != 1 {
		t.Errorf("unexpected depths %d, %d", flat[0].Depth(), flat[1].Depth())
	}
	if !flat[4].Contains("uncategorized") {
		t.Error("expected case-insensitive keyword match on label")
	}
	if !flat[2].Contains("income") {
		t.Error("expected keyword match on ancestor path")
	}
}

func TestFlattenPathsAreIndependent(t *testing.T) {
	rows := []*Row{{
		ColData: []Cell{{Value: "Parent"}},
		Rows: &RowSet{Row: []*Row{
			{ColData: []Cell{{Value: "A"}}},
			{ColData: []Cell{{Value: "B"}}},
		}},
	}}

	flat := Flatten(rows)
	if flat[1].JoinedPath() != "Parent > A" || flat[2].JoinedPath() != "Parent > B" {
		t.Errorf("sibling paths share storage: %q, %q", flat[1].JoinedPath(), flat[2].JoinedPath())
	}
}

func TestFlattenSkipsNilOnly(t *testing.T) {
	flat := Flatten([]*Row{nil, {}, nil})
	if len(flat) != 1 || flat[0].Label() != "row" {
		t.Fatalf("expected a single fallback row, got %+v", flat)
	}
}

func TestRowAmount(t *testing.T) {
	tests := []struct {
		name  string
		row   *Row
		want  string
		valid bool
	}{
		{
			name:  "rightmost parseable wins",
			row:   &Row{ColData: []Cell{{Value: "Sales"}, {Value: "10.00"}, {Value: "20.00"}, {Value: "30.00"}}},
			want:  "30",
			valid: true,
		},
		{
			name:  "skips unparseable trailing cells",
			row:   &Row{ColData: []Cell{{Value: "Sales"}, {Value: "10.00"}, {Value: ""}}},
			want:  "10",
			valid: true,
		},
		{
			name:  "summary cells when own cells absent",
			row:   &Row{Summary: &CellSet{ColData: []Cell{{Value: "Total Income"}, {Value: "(1,300.00)"}}}},
			want:  "-1300",
			valid: true,
		},
		{
			name: "own cells preferred over summary",
			row: &Row{
				ColData: []Cell{{Value: "Refunds"}, {Value: "5"}},
				Summary: &CellSet{ColData: []Cell{{Value: "Total"}, {Value: "500"}}},
			},
			want:  "5",
			valid: true,
		},
		{
			name:  "nothing parses",
			row:   &Row{ColData: []Cell{{Value: "Sales"}, {Value: "n/a"}}},
			valid: false,
		},
		{
			name:  "no cells",
			row:   &Row{Type: "Section"},
			valid: false,
		},
		{
			name:  "nil row",
			row:   nil,
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RowAmount(tt.row)
			if ok != tt.valid {
				t.Fatalf("RowAmount ok = %v, want %v", ok, tt.valid)
			}
			if tt.valid && !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("RowAmount = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAccountID(t *testing.T) {
	flat := loadSample(t).Flatten()
	if got := flat[1].Row.AccountID(); got != "41" {
		t.Errorf("AccountID = %q, want 41", got)
	}
	if got := flat[0].Row.AccountID(); got != "" {
		t.Errorf("section AccountID = %q, want empty", got)
	}
}

func TestDiagnose(t *testing.T) {
	diags, summary := Diagnose(loadSample(t).TopRows())

	if summary.TotalRows != 7 {
		t.Errorf("TotalRows = %d, want 7", summary.TotalRows)
	}
	if summary.Sections != 2 {
		t.Errorf("Sections = %d, want 2", summary.Sections)
	}
	if summary.MaxDepth != 1 {
		t.Errorf("MaxDepth = %d, want 1", summary.MaxDepth)
	}
	// Income (summary), two income lines, expense line, net income
	if summary.WithAmount != 5 {
		t.Errorf("WithAmount = %d, want 5", summary.WithAmount)
	}
	if diags[2].Amount == nil || !diags[2].Amount.Equal(decimal.NewFromInt(-200)) {
		t.Errorf("expected refunds amount -200, got %v", diags[2].Amount)
	}
	if diags[5].Amount != nil {
		t.Errorf("expected empty data row to have no amount, got %v", diags[5].Amount)
	}
}
