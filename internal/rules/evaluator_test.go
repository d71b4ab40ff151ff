package rules

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/models"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/report"
	"github.com/Vitaliy77/month-end-dashboard-sub000/pkg/logger"
)

func account(label, id, amount string) *report.Row {
	return &report.Row{
		Type:    "Data",
		ColData: []report.Cell{{Value: label, ID: id}, {Value: amount}},
	}
}

func section(label string, children ...*report.Row) *report.Row {
	return &report.Row{
		Type:   "Section",
		Header: &report.CellSet{ColData: []report.Cell{{Value: label}, {Value: ""}}},
		Rows:   &report.RowSet{Row: children},
	}
}

func newReport(rows ...*report.Row) *report.Report {
	return &report.Report{Rows: report.RowSet{Row: rows}}
}

func newTestEvaluator(workers int) *Evaluator {
	return NewEvaluator(&Config{Workers: workers}, logger.Nop())
}

func sampleCurrent() *report.Report {
	return newReport(
		section("Income",
			account("Product Income - Retail", "41", "(120.00)"),
			account("Service Revenue", "42", "900.00"),
			account("Total Income", "", "(50.00)"),
		),
		section("Expenses",
			account("Uncategorized Expense", "99", "600.00"),
			account("Office Supplies", "61", "40.00"),
			account("Software Subscriptions", "62", "75.00"),
		),
	)
}

func sampleRules() []models.Rule {
	return []models.Rule{
		{ID: "custom_software", Name: "Software", Enabled: true, Type: TypeCustomThreshold,
			Params: map[string]any{"threshold": 50}},
		{ID: RuleUncategorizedExpenses, Name: "Uncategorized expenses", Enabled: true,
			Params: map[string]any{"maxAmount": 500}},
		{ID: "disabled_rule", Enabled: false, Type: TypeCustomThreshold,
			Params: map[string]any{"threshold": 1, "keyword": "office"}},
		{ID: RuleNegativeIncomeLines, Name: "Negative income", Enabled: true, Severity: models.SeverityHigh},
		{ID: "custom_without_type", Enabled: true, Params: map[string]any{"threshold": 1, "keyword": "office"}},
	}
}

func TestEvaluateOrderAndIdempotence(t *testing.T) {
	eval := newTestEvaluator(1)

	first, err := eval.Evaluate(sampleRules(), sampleCurrent(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := eval.Evaluate(sampleRules(), sampleCurrent(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantRules := []string{"custom_software", RuleUncategorizedExpenses, RuleNegativeIncomeLines}
	if len(first) != len(wantRules) {
		t.Fatalf("expected %d findings, got %d: %v", len(wantRules), len(first), first)
	}
	for i, want := range wantRules {
		if first[i].RuleID != want {
			t.Errorf("finding %d rule = %s, want %s", i, first[i].RuleID, want)
		}
		if first[i].ID != second[i].ID {
			t.Errorf("finding %d id changed between runs: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
}

func TestEvaluateParallelPreservesOrder(t *testing.T) {
	sequential, err := newTestEvaluator(1).Evaluate(sampleRules(), sampleCurrent(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parallel, err := newTestEvaluator(4).Evaluate(sampleRules(), sampleCurrent(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sequential) != len(parallel) {
		t.Fatalf("parallel run returned %d findings, sequential %d", len(parallel), len(sequential))
	}
	for i := range sequential {
		if sequential[i].ID != parallel[i].ID {
			t.Errorf("finding %d differs: %s vs %s", i, sequential[i].ID, parallel[i].ID)
		}
	}
}

func TestEvaluateNilCurrentReport(t *testing.T) {
	if _, err := newTestEvaluator(1).Evaluate(sampleRules(), nil, nil, nil); err == nil {
		t.Fatal("expected error for missing current report")
	}
}

func TestEvaluateGuardsPanics(t *testing.T) {
	eval := newTestEvaluator(1)
	eval.strategies[KindCustomThreshold] = func(*models.Rule, *inputs) (*outcome, string) {
		panic("boom")
	}

	findings, err := eval.Evaluate(sampleRules(), sampleCurrent(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings) != 2 {
		t.Fatalf("expected the two remaining findings, got %d", len(findings))
	}
	if findings[0].RuleID != RuleUncategorizedExpenses {
		t.Errorf("unexpected first finding %s", findings[0].RuleID)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		rule models.Rule
		want Kind
	}{
		{models.Rule{ID: "anything", Type: "custom_threshold"}, KindCustomThreshold},
		{models.Rule{ID: "x", Type: " Variance_Prior_Month "}, KindVariancePriorMonth},
		{models.Rule{ID: RuleUncategorizedExpenses}, KindFixedThreshold},
		{models.Rule{ID: RuleNegativeIncomeLines}, KindFixedBoolean},
		{models.Rule{ID: "custom_prefix_only"}, KindUnknown},
		{models.Rule{ID: RuleUncategorizedExpenses, Type: TypeVariancePriorMonth}, KindVariancePriorMonth},
	}

	for _, tt := range tests {
		t.Run(tt.rule.ID, func(t *testing.T) {
			if got := KindOf(&tt.rule); got != tt.want {
				t.Errorf("KindOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func customRule(params map[string]any) []models.Rule {
	return []models.Rule{{ID: "custom_1", Name: "Travel", Enabled: true, Type: TypeCustomThreshold, Params: params}}
}

func TestCustomThresholdBoundary(t *testing.T) {
	tests := []struct {
		name    string
		amounts []string
		trigger bool
	}{
		{"exactly at threshold", []string{"60.00", "40.00"}, true},
		{"one cent short", []string{"60.00", "39.99"}, false},
		{"negative amounts count by magnitude", []string{"(60.00)", "40.00"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rows []*report.Row
			for i, a := range tt.amounts {
				rows = append(rows, account(fmt.Sprintf("Travel %d", i), "", a))
			}
			findings, err := newTestEvaluator(1).Evaluate(
				customRule(map[string]any{"threshold": "100", "mode": "sum"}),
				newReport(section("Expenses", rows...)), nil, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := len(findings) == 1; got != tt.trigger {
				t.Errorf("triggered = %v, want %v", got, tt.trigger)
			}
		})
	}
}

func TestCustomThresholdModes(t *testing.T) {
	current := newReport(section("Expenses",
		account("Travel - Air", "", "70.00"),
		account("Travel - Hotel", "", "60.00"),
	))

	largest, _ := newTestEvaluator(1).Evaluate(customRule(map[string]any{"threshold": 100, "mode": "any"}), current, nil, nil)
	if len(largest) != 0 {
		t.Errorf("mode any should compare the largest line, got %d findings", len(largest))
	}

	sum, _ := newTestEvaluator(1).Evaluate(customRule(map[string]any{"threshold": 100}), current, nil, nil)
	if len(sum) != 1 {
		t.Fatalf("default sum mode should trigger, got %d findings", len(sum))
	}
	ev := sum[0].Evidence.(customEvidence)
	if ev.MatchedCount != 2 || !ev.Sum.Equal(decimal.NewFromInt(130)) || !ev.Max.Equal(decimal.NewFromInt(70)) {
		t.Errorf("unexpected evidence %+v", ev)
	}
	if ev.Keyword != "Travel" {
		t.Errorf("keyword should default to the rule name, got %q", ev.Keyword)
	}
}

func TestCustomThresholdSkips(t *testing.T) {
	current := newReport(account("Travel", "", "1000"))
	tests := []struct {
		name   string
		params map[string]any
	}{
		{"missing threshold", map[string]any{"keyword": "travel"}},
		{"zero threshold", map[string]any{"threshold": 0}},
		{"negative threshold", map[string]any{"threshold": -5}},
		{"unparsable threshold", map[string]any{"threshold": "lots"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings, err := newTestEvaluator(1).Evaluate(customRule(tt.params), current, nil, nil)
			if err != nil {
				t.Fatalf("skips must not surface as errors: %v", err)
			}
			if len(findings) != 0 {
				t.Errorf("expected rule to be skipped, got %d findings", len(findings))
			}
		})
	}

	unnamed := []models.Rule{{ID: "c", Enabled: true, Type: TypeCustomThreshold, Params: map[string]any{"threshold": 1}}}
	if findings, _ := newTestEvaluator(1).Evaluate(unnamed, current, nil, nil); len(findings) != 0 {
		t.Error("rule without keyword or name should be skipped")
	}
}

func TestEvidenceLinesCapped(t *testing.T) {
	var rows []*report.Row
	for i := 0; i < 75; i++ {
		rows = append(rows, account(fmt.Sprintf("Travel %02d", i), "", "10"))
	}
	findings, _ := newTestEvaluator(1).Evaluate(customRule(map[string]any{"threshold": 1}), newReport(rows...), nil, nil)
	if len(findings) != 1 {
		t.Fatalf("expected one finding, got %d", len(findings))
	}
	ev := findings[0].Evidence.(customEvidence)
	if ev.MatchedCount != 75 || len(ev.Lines) != maxEvidenceLines {
		t.Errorf("expected 75 matches and %d lines, got %d and %d", maxEvidenceLines, ev.MatchedCount, len(ev.Lines))
	}
}

func TestUncategorizedStrictlyExceeds(t *testing.T) {
	current := newReport(section("Expenses",
		account("Uncategorized Expense", "", "300.00"),
		account("Uncategorized Asset", "", "(200.00)"),
	))
	rule := func(limit any) []models.Rule {
		return []models.Rule{{ID: RuleUncategorizedExpenses, Enabled: true, Params: map[string]any{"maxAmount": limit}}}
	}

	if findings, _ := newTestEvaluator(1).Evaluate(rule(500), current, nil, nil); len(findings) != 0 {
		t.Error("total equal to maxAmount must not trigger")
	}
	findings, _ := newTestEvaluator(1).Evaluate(rule("499.99"), current, nil, nil)
	if len(findings) != 1 {
		t.Fatalf("expected a finding above maxAmount, got %d", len(findings))
	}
	ev := findings[0].Evidence.(uncategorizedEvidence)
	if !ev.Total.Equal(decimal.NewFromInt(500)) || ev.MatchedCount != 2 {
		t.Errorf("unexpected evidence %+v", ev)
	}
	if findings, _ := newTestEvaluator(1).Evaluate([]models.Rule{{ID: RuleUncategorizedExpenses, Enabled: true}}, current, nil, nil); len(findings) != 0 {
		t.Error("rule without maxAmount should be skipped")
	}
}

func TestNegativeIncomeLines(t *testing.T) {
	current := newReport(
		section("Income",
			account("Product Income - Retail", "41", "(120.00)"),
			account("Service Revenue", "42", "900.00"),
			account("Total Income", "", "(50.00)"),
			account("Net Operating Income", "", "-10"),
			section("Other Income", account("Interest", "43", "-5.00")),
		),
		section("Expenses", account("Refund Expense", "", "-30")),
		&report.Row{Type: "Summary", ColData: []report.Cell{{Value: "Revenue adjustments"}, {Value: "-1"}}},
	)
	owners := []models.AccountOwner{
		{AccountType: models.AccountTypePnL, AccountNameContains: "Income", OwnerName: "Ann", OwnerEmail: "ann@example.com", Enabled: true},
		{AccountType: models.AccountTypePnL, AccountNameContains: "Product Income", OwnerName: "Bob", OwnerEmail: "bob@example.com", Enabled: true},
	}

	findings, err := newTestEvaluator(1).Evaluate(
		[]models.Rule{{ID: RuleNegativeIncomeLines, Enabled: true}}, current, nil, owners)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("expected one finding, got %d", len(findings))
	}

	f := findings[0]
	ev := f.Evidence.(negativeIncomeEvidence)
	if ev.Count != 2 {
		t.Fatalf("expected product income and interest lines, got %+v", ev.Lines)
	}
	if ev.Lines[0].Path != "Income > Product Income - Retail" || ev.Lines[1].Path != "Income > Other Income > Interest" {
		t.Errorf("unexpected matched lines %+v", ev.Lines)
	}
	if f.OwnerSource != models.OwnerSourceAccount || f.OwnerName != "Bob" {
		t.Errorf("expected most specific owner Bob, got %s (%s)", f.OwnerName, f.OwnerSource)
	}
}

func TestNegativeIncomeUntypedParent(t *testing.T) {
	current := newReport(&report.Row{
		Header:  &report.CellSet{ColData: []report.Cell{{Value: "Income"}, {Value: ""}}},
		Rows:    &report.RowSet{Row: []*report.Row{account("Sales", "1", "100.00")}},
		Summary: &report.CellSet{ColData: []report.Cell{{Value: ""}, {Value: "-10.00"}}},
	})

	findings, err := newTestEvaluator(1).Evaluate(
		[]models.Rule{{ID: RuleNegativeIncomeLines, Enabled: true}}, current, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("expected one finding, got %d", len(findings))
	}

	ev := findings[0].Evidence.(negativeIncomeEvidence)
	if ev.Count != 1 || ev.Lines[0].Path != "Income" {
		t.Errorf("expected only the untyped Income parent, got %+v", ev.Lines)
	}
}

func TestIsTotalLike(t *testing.T) {
	for _, label := range []string{"Total Income", "TOTAL revenue", "Gross Profit", "Net Income", "Net-Income (Loss)", "Net Operating Income"} {
		if !isTotalLike(label) {
			t.Errorf("%q should be total-like", label)
		}
	}
	for _, label := range []string{"Product Income", "Interest Income", "Sales"} {
		if isTotalLike(label) {
			t.Errorf("%q should not be total-like", label)
		}
	}
}

func varianceReports(current, prior string) (*report.Report, *report.Report) {
	return newReport(section("Income", account("Consulting", "4100", current))),
		newReport(section("Income", account("Consulting", "4100", prior)))
}

func varianceRule(params map[string]any) []models.Rule {
	base := map[string]any{
		"metric":           "pnl",
		"account_selector": map[string]any{"account_name_contains": "consulting"},
	}
	for k, v := range params {
		base[k] = v
	}
	return []models.Rule{{ID: "var_1", Name: "Consulting swing", Enabled: true, Type: TypeVariancePriorMonth, Params: base}}
}

func TestVarianceZeroBase(t *testing.T) {
	current, prior := varianceReports("50", "0")

	findings, _ := newTestEvaluator(1).Evaluate(varianceRule(map[string]any{"abs_threshold": 40}), current, prior, nil)
	if len(findings) != 1 {
		t.Fatalf("zero base with abs_threshold should trigger, got %d", len(findings))
	}
	f := findings[0]
	if f.PctDelta != nil {
		t.Errorf("pct delta must be unset at zero base, got %s", f.PctDelta)
	}
	if !f.Delta.Equal(decimal.NewFromInt(50)) || !f.PriorValue.IsZero() {
		t.Errorf("unexpected variance values current=%s prior=%s delta=%s", f.CurrentValue, f.PriorValue, f.Delta)
	}
	ev := f.Evidence.(varianceEvidence)
	if len(ev.TriggeredBy) != 1 || ev.TriggeredBy[0] != triggerZeroBaseAbs {
		t.Errorf("unexpected trigger %v", ev.TriggeredBy)
	}

	findings, _ = newTestEvaluator(1).Evaluate(varianceRule(map[string]any{"pct_threshold": 0.1}), current, prior, nil)
	if len(findings) != 0 {
		t.Error("percent threshold is undefined at zero base and must not trigger")
	}
}

func TestVarianceDirectionPrecedence(t *testing.T) {
	current, prior := varianceReports("80", "100")

	findings, _ := newTestEvaluator(1).Evaluate(
		varianceRule(map[string]any{"abs_threshold": 1, "direction": "increase"}), current, prior, nil)
	if len(findings) != 0 {
		t.Error("a decrease must never trigger an increase rule")
	}

	findings, _ = newTestEvaluator(1).Evaluate(
		varianceRule(map[string]any{"abs_threshold": 1, "direction": "decrease"}), current, prior, nil)
	if len(findings) != 1 {
		t.Fatalf("expected decrease rule to trigger, got %d", len(findings))
	}
	if !findings[0].PctDelta.Equal(decimal.RequireFromString("-0.2")) {
		t.Errorf("pct delta = %s, want -0.2", findings[0].PctDelta)
	}
}

func TestVariancePercentAndMinBase(t *testing.T) {
	current, prior := varianceReports("130", "100")

	tests := []struct {
		name    string
		params  map[string]any
		trigger bool
	}{
		{"pct reached", map[string]any{"pct_threshold": 0.3}, true},
		{"pct not reached", map[string]any{"pct_threshold": 0.31}, false},
		{"base below minimum", map[string]any{"pct_threshold": 0.1, "min_base_amount": 500}, false},
		{"abs still fires below min base", map[string]any{"pct_threshold": 0.1, "min_base_amount": 500, "abs_threshold": 30}, true},
		{"no thresholds", map[string]any{}, false},
		{"negative threshold is unset", map[string]any{"abs_threshold": -1}, false},
		{"unsupported metric", map[string]any{"metric": "bs", "abs_threshold": 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings, err := newTestEvaluator(1).Evaluate(varianceRule(tt.params), current, prior, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := len(findings) == 1; got != tt.trigger {
				t.Errorf("triggered = %v, want %v", got, tt.trigger)
			}
		})
	}
}

func TestVarianceSkippedWithoutPrior(t *testing.T) {
	current, _ := varianceReports("130", "100")
	findings, err := newTestEvaluator(1).Evaluate(varianceRule(map[string]any{"abs_threshold": 1}), current, nil, nil)
	if err != nil || len(findings) != 0 {
		t.Errorf("expected silent skip, got %d findings, err %v", len(findings), err)
	}
}

func TestVarianceBreakdownAndSelectors(t *testing.T) {
	current := newReport(section("Expenses",
		account("Rent", "6100", "1000"),
		account("Utilities", "6200", "300"),
		account("Travel", "6300", "50"),
	))
	prior := newReport(section("Expenses",
		account("Rent", "6100", "1000"),
		account("Utilities", "6200", "100"),
		account("Travel", "6300", "450"),
	))

	global := []models.Rule{{ID: "global", Enabled: true, Type: TypeVariancePriorMonth,
		Params: map[string]any{"abs_threshold": 100}}}
	findings, _ := newTestEvaluator(1).Evaluate(global, current, prior, nil)
	if len(findings) != 1 {
		t.Fatalf("expected global variance finding, got %d", len(findings))
	}
	ev := findings[0].Evidence.(varianceEvidence)
	wantOrder := []string{"Expenses > Travel", "Expenses > Utilities", "Expenses > Rent"}
	if len(ev.Breakdown) != 3 {
		t.Fatalf("expected 3 breakdown rows, got %+v", ev.Breakdown)
	}
	for i, want := range wantOrder {
		if ev.Breakdown[i].Path != want {
			t.Errorf("breakdown[%d] = %s, want %s", i, ev.Breakdown[i].Path, want)
		}
	}

	byNumber := []models.Rule{{ID: "num", Enabled: true, Type: TypeVariancePriorMonth,
		Params: map[string]any{"abs_threshold": 100, "account_selector": map[string]any{"account_number": "62"}}}}
	owners := []models.AccountOwner{{AccountType: models.AccountTypePnL, AccountNumber: "62", OwnerName: "Uma", Enabled: true}}
	findings, _ = newTestEvaluator(1).Evaluate(byNumber, current, prior, owners)
	if len(findings) != 1 || !findings[0].Delta.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected utilities-only variance of 200, got %+v", findings)
	}
	if findings[0].OwnerName != "Uma" {
		t.Errorf("expected owner resolved by account number, got %q", findings[0].OwnerName)
	}
}
