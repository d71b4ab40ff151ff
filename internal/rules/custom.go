package rules

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/models"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/owner"
)

// Custom threshold aggregation modes
const (
	ModeSum = "sum"
	ModeAny = "any"
)

type customEvidence struct {
	Keyword      string          `json:"keyword"`
	Mode         string          `json:"mode"`
	Threshold    decimal.Decimal `json:"threshold"`
	MatchedCount int             `json:"matched_count"`
	Sum          decimal.Decimal `json:"sum"`
	Max          decimal.Decimal `json:"max"`
	Lines        []matchedLine   `json:"lines"`
}

// evaluateCustomThreshold matches lines by keyword and compares either the
// sum or the largest of their absolute amounts against the threshold (>=).
func evaluateCustomThreshold(rule *models.Rule, in *inputs) (*outcome, string) {
	p := params(rule.Params)

	threshold, ok := p.number("threshold")
	if !ok || !threshold.IsPositive() {
		return nil, "threshold must be a positive number"
	}

	keyword := p.str("keyword")
	if keyword == "" {
		keyword = strings.TrimSpace(rule.Name)
	}
	if keyword == "" {
		return nil, "keyword is empty"
	}
	needle := strings.ToLower(keyword)

	mode := strings.ToLower(p.str("mode"))
	if mode != ModeAny {
		mode = ModeSum
	}

	var matched []*line
	sum, largest := decimal.Zero, decimal.Zero
	for i := range in.current.lines {
		l := &in.current.lines[i]
		if !l.hasAmount || !l.contains(needle) {
			continue
		}
		matched = append(matched, l)
		abs := l.amount.Abs()
		sum = sum.Add(abs)
		if abs.GreaterThan(largest) {
			largest = abs
		}
	}

	measured := sum
	if mode == ModeAny {
		measured = largest
	}
	if len(matched) == 0 || measured.LessThan(threshold) {
		return nil, ""
	}

	accountType := models.AccountType(strings.ToLower(p.str("account_type")))
	if !accountType.IsValid() {
		accountType = models.AccountTypePnL
	}

	var summary string
	if mode == ModeAny {
		summary = fmt.Sprintf("A line matching %q reached %s, at or above the %s threshold.",
			keyword, money(largest), money(threshold))
	} else {
		summary = fmt.Sprintf("%d line(s) matching %q total %s, at or above the %s threshold.",
			len(matched), keyword, money(sum), money(threshold))
	}

	return &outcome{
		finding: models.Finding{
			Title:    fmt.Sprintf("%s threshold reached", rule.DisplayName()),
			Severity: severityFor(rule, measured, threshold),
			Summary:  summary,
			Detail:   lineDetail(matched),
			ParamsUsed: map[string]any{
				"threshold": threshold.String(),
				"keyword":   keyword,
				"mode":      mode,
			},
			Evidence: customEvidence{
				Keyword:      keyword,
				Mode:         mode,
				Threshold:    threshold,
				MatchedCount: len(matched),
				Sum:          sum,
				Max:          largest,
				Lines:        evidenceLines(matched),
			},
		},
		hint: &owner.AccountHint{AccountType: accountType, Name: keyword},
	}, ""
}
