package rules

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/models"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/owner"
)

const uncategorizedKeyword = "uncategorized"

type uncategorizedEvidence struct {
	Keyword      string          `json:"keyword"`
	Total        decimal.Decimal `json:"total"`
	Threshold    decimal.Decimal `json:"threshold"`
	MatchedCount int             `json:"matched_count"`
	Lines        []matchedLine   `json:"lines"`
}

// evaluateUncategorized sums |amount| over lines mentioning "uncategorized"
// and triggers when the sum strictly exceeds params.maxAmount.
func evaluateUncategorized(rule *models.Rule, in *inputs) (*outcome, string) {
	p := params(rule.Params)
	limit, ok := p.nonNegative("maxAmount", "max_amount")
	if !ok {
		return nil, "maxAmount not configured"
	}

	var matched []*line
	total := decimal.Zero
	for i := range in.current.lines {
		l := &in.current.lines[i]
		if !l.hasAmount || !l.contains(uncategorizedKeyword) {
			continue
		}
		matched = append(matched, l)
		total = total.Add(l.amount.Abs())
	}

	if !total.GreaterThan(limit) {
		return nil, ""
	}

	evidence := uncategorizedEvidence{
		Keyword:      uncategorizedKeyword,
		Total:        total,
		Threshold:    limit,
		MatchedCount: len(matched),
		Lines:        evidenceLines(matched),
	}

	return &outcome{
		finding: models.Finding{
			Title:    "Uncategorized activity above limit",
			Severity: severityFor(rule, total, limit),
			Summary: fmt.Sprintf("Uncategorized lines total %s across %d line(s), above the %s limit.",
				money(total), len(matched), money(limit)),
			Detail:     lineDetail(matched),
			ParamsUsed: map[string]any{"maxAmount": limit.String()},
			Evidence:   evidence,
		},
		hint: &owner.AccountHint{AccountType: models.AccountTypePnL, Name: uncategorizedKeyword},
	}, ""
}

type negativeIncomeEvidence struct {
	Count int           `json:"count"`
	Lines []matchedLine `json:"lines"`
}

// totalLikeLabels are aggregate rows that must never count as income lines
var totalLikeLabels = map[string]bool{
	"total income":         true,
	"total revenue":        true,
	"total other income":   true,
	"gross profit":         true,
	"net income":           true,
	"net revenue":          true,
	"net operating income": true,
	"net other income":     true,
}

func isTotalLike(label string) bool {
	lower := strings.ToLower(strings.TrimSpace(label))
	if totalLikeLabels[lower] || strings.HasPrefix(lower, "total") {
		return true
	}
	compact := alphanumeric(lower)
	return strings.HasPrefix(compact, "netincome") || strings.HasPrefix(compact, "netoperatingincome")
}

func alphanumeric(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// evaluateNegativeIncome triggers when any income or revenue account line
// (not a section or total) carries a strictly negative amount.
func evaluateNegativeIncome(rule *models.Rule, in *inputs) (*outcome, string) {
	var matched []*line
	for i := range in.current.lines {
		l := &in.current.lines[i]
		if !strings.Contains(l.lowerPath, "income") && !strings.Contains(l.lowerPath, "revenue") {
			continue
		}
		if isTotalLike(l.flat.Label()) {
			continue
		}
		if l.flat.Row.IsSectionType() {
			continue
		}
		if !l.hasAmount || !l.amount.IsNegative() {
			continue
		}
		matched = append(matched, l)
	}

	if len(matched) == 0 {
		return nil, ""
	}

	sum := decimal.Zero
	for _, l := range matched {
		sum = sum.Add(l.amount)
	}

	severity := rule.Severity
	if !severity.IsValid() {
		severity = models.SeverityMedium
		if len(matched) > 1 {
			severity = models.SeverityHigh
		}
	}

	return &outcome{
		finding: models.Finding{
			Title:    "Negative income lines",
			Severity: severity,
			Summary: fmt.Sprintf("%d income line(s) carry negative balances totalling %s.",
				len(matched), money(sum)),
			Detail:     lineDetail(matched),
			ParamsUsed: copyParams(rule.Params),
			Evidence: negativeIncomeEvidence{
				Count: len(matched),
				Lines: evidenceLines(matched),
			},
		},
		hint: &owner.AccountHint{AccountType: models.AccountTypePnL, Name: matched[0].path},
	}, ""
}

// lineDetail lists the first few matched lines for human readers
func lineDetail(lines []*line) string {
	const shown = 5
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteString("\n")
		}
		if i == shown {
			fmt.Fprintf(&b, "... and %d more", len(lines)-shown)
			break
		}
		fmt.Fprintf(&b, "%s: %s", l.path, money(l.amount))
	}
	return b.String()
}
