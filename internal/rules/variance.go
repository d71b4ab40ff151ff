package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/models"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/owner"
)

// Variance direction filters
const (
	DirectionAny      = "any"
	DirectionIncrease = "increase"
	DirectionDecrease = "decrease"
)

const (
	metricPnL          = "pnl"
	maxBreakdownLines  = 10
	pctDeltaPrecision  = 6
	triggerAbsolute    = "abs_threshold"
	triggerPercent     = "pct_threshold"
	triggerZeroBaseAbs = "zero_base_abs_threshold"
)

type accountSelector struct {
	AccountNumber       string `json:"account_number,omitempty"`
	AccountNameContains string `json:"account_name_contains,omitempty"`
}

func (s accountSelector) empty() bool {
	return s.AccountNumber == "" && s.AccountNameContains == ""
}

func (s accountSelector) matches(l *line) bool {
	if s.empty() {
		return true
	}
	if s.AccountNumber != "" {
		id := strings.ToLower(l.flat.Row.AccountID())
		if id != "" && strings.Contains(id, strings.ToLower(s.AccountNumber)) {
			return true
		}
	}
	if s.AccountNameContains != "" && l.contains(strings.ToLower(s.AccountNameContains)) {
		return true
	}
	return false
}

type accountDelta struct {
	Path    string          `json:"path"`
	Current decimal.Decimal `json:"current"`
	Prior   decimal.Decimal `json:"prior"`
	Delta   decimal.Decimal `json:"delta"`
}

type varianceEvidence struct {
	Metric        string           `json:"metric"`
	Selector      accountSelector  `json:"account_selector"`
	Direction     string           `json:"direction"`
	AbsThreshold  *decimal.Decimal `json:"abs_threshold,omitempty"`
	PctThreshold  *decimal.Decimal `json:"pct_threshold,omitempty"`
	MinBaseAmount decimal.Decimal  `json:"min_base_amount"`
	Current       decimal.Decimal  `json:"current"`
	Prior         decimal.Decimal  `json:"prior"`
	Delta         decimal.Decimal  `json:"delta"`
	PctDelta      *decimal.Decimal `json:"pct_delta,omitempty"`
	TriggeredBy   []string         `json:"triggered_by"`
	Breakdown     []accountDelta   `json:"breakdown"`
}

// varianceConfig is the validated parameter set of a variance rule
type varianceConfig struct {
	selector  accountSelector
	absolute  *decimal.Decimal
	percent   *decimal.Decimal
	minBase   decimal.Decimal
	direction string
}

func parseVarianceConfig(p params) (*varianceConfig, string) {
	metric := strings.ToLower(p.str("metric"))
	if metric != "" && metric != metricPnL {
		return nil, fmt.Sprintf("unsupported metric %q", metric)
	}

	sel := p.nested("account_selector")
	cfg := &varianceConfig{
		selector: accountSelector{
			AccountNumber:       sel.str("account_number"),
			AccountNameContains: sel.str("account_name_contains"),
		},
		direction: strings.ToLower(p.str("direction")),
	}

	if d, ok := p.nonNegative("abs_threshold"); ok {
		cfg.absolute = &d
	}
	if d, ok := p.nonNegative("pct_threshold"); ok {
		cfg.percent = &d
	}
	if cfg.absolute == nil && cfg.percent == nil {
		return nil, "neither abs_threshold nor pct_threshold configured"
	}
	if d, ok := p.nonNegative("min_base_amount"); ok {
		cfg.minBase = d
	}

	switch cfg.direction {
	case "":
		cfg.direction = DirectionAny
	case DirectionAny, DirectionIncrease, DirectionDecrease:
	default:
		return nil, fmt.Sprintf("unsupported direction %q", cfg.direction)
	}
	return cfg, ""
}

// evaluateVariance compares matched account totals between the current and
// prior period. The direction filter is applied before any threshold.
func evaluateVariance(rule *models.Rule, in *inputs) (*outcome, string) {
	if in.prior == nil {
		return nil, "prior period report not supplied"
	}
	cfg, reason := parseVarianceConfig(params(rule.Params))
	if cfg == nil {
		return nil, reason
	}

	byPath := make(map[string]*accountDelta)
	var order []string
	accumulate := func(s *snapshot, isCurrent bool) decimal.Decimal {
		total := decimal.Zero
		for i := range s.lines {
			l := &s.lines[i]
			if !l.hasAmount || !cfg.selector.matches(l) {
				continue
			}
			total = total.Add(l.amount)
			acc, ok := byPath[l.path]
			if !ok {
				acc = &accountDelta{Path: l.path}
				byPath[l.path] = acc
				order = append(order, l.path)
			}
			if isCurrent {
				acc.Current = acc.Current.Add(l.amount)
			} else {
				acc.Prior = acc.Prior.Add(l.amount)
			}
		}
		return total
	}
	current := accumulate(in.current, true)
	prior := accumulate(in.prior, false)
	delta := current.Sub(prior)

	switch cfg.direction {
	case DirectionIncrease:
		if !delta.IsPositive() {
			return nil, ""
		}
	case DirectionDecrease:
		if !delta.IsNegative() {
			return nil, ""
		}
	}

	absDelta := delta.Abs()
	absPrior := prior.Abs()
	var pctDelta *decimal.Decimal
	if !prior.IsZero() {
		pct := absDelta.Div(absPrior).Round(pctDeltaPrecision)
		if delta.IsNegative() {
			pct = pct.Neg()
		}
		pctDelta = &pct
	}

	var triggered []string
	if cfg.absolute != nil && absDelta.GreaterThanOrEqual(*cfg.absolute) {
		if prior.IsZero() {
			triggered = append(triggered, triggerZeroBaseAbs)
		} else {
			triggered = append(triggered, triggerAbsolute)
		}
	}
	if cfg.percent != nil && !prior.IsZero() && absPrior.GreaterThanOrEqual(cfg.minBase) &&
		absDelta.Div(absPrior).GreaterThanOrEqual(*cfg.percent) {
		triggered = append(triggered, triggerPercent)
	}
	if len(triggered) == 0 {
		return nil, ""
	}

	breakdown := make([]accountDelta, 0, len(order))
	for _, path := range order {
		acc := byPath[path]
		acc.Delta = acc.Current.Sub(acc.Prior)
		breakdown = append(breakdown, *acc)
	}
	sort.SliceStable(breakdown, func(i, j int) bool {
		di, dj := breakdown[i].Delta.Abs(), breakdown[j].Delta.Abs()
		if !di.Equal(dj) {
			return di.GreaterThan(dj)
		}
		return breakdown[i].Path < breakdown[j].Path
	})
	if len(breakdown) > maxBreakdownLines {
		breakdown = breakdown[:maxBreakdownLines]
	}

	evidence := varianceEvidence{
		Metric:        metricPnL,
		Selector:      cfg.selector,
		Direction:     cfg.direction,
		AbsThreshold:  cfg.absolute,
		PctThreshold:  cfg.percent,
		MinBaseAmount: cfg.minBase,
		Current:       current,
		Prior:         prior,
		Delta:         delta,
		PctDelta:      pctDelta,
		TriggeredBy:   triggered,
		Breakdown:     breakdown,
	}

	hint := &owner.AccountHint{AccountType: models.AccountTypePnL}
	if cfg.selector.AccountNameContains != "" {
		hint.Name = cfg.selector.AccountNameContains
	} else {
		hint.AccountNumber = cfg.selector.AccountNumber
	}

	cur, pri, del := current, prior, delta
	return &outcome{
		finding: models.Finding{
			Title:        fmt.Sprintf("%s changed vs prior month", varianceSubject(cfg.selector, rule)),
			Severity:     varianceSeverity(rule, cfg, absDelta),
			Summary:      varianceSummary(current, prior, delta, pctDelta),
			Detail:       breakdownDetail(breakdown),
			ParamsUsed:   varianceParams(cfg),
			Evidence:     evidence,
			CurrentValue: &cur,
			PriorValue:   &pri,
			Delta:        &del,
			PctDelta:     pctDelta,
		},
		hint: hint,
	}, ""
}

func varianceSubject(sel accountSelector, rule *models.Rule) string {
	switch {
	case sel.AccountNameContains != "":
		return sel.AccountNameContains
	case sel.AccountNumber != "":
		return "Account " + sel.AccountNumber
	default:
		return rule.DisplayName()
	}
}

func varianceSeverity(rule *models.Rule, cfg *varianceConfig, absDelta decimal.Decimal) models.Severity {
	if cfg.absolute != nil {
		return severityFor(rule, absDelta, *cfg.absolute)
	}
	return rule.Severity.OrDefault()
}

func varianceSummary(current, prior, delta decimal.Decimal, pct *decimal.Decimal) string {
	direction := "increased"
	if delta.IsNegative() {
		direction = "decreased"
	}
	s := fmt.Sprintf("Balance %s from %s to %s (%s)", direction, money(prior), money(current), money(delta))
	if pct != nil {
		s += fmt.Sprintf(", %s%%", pct.Mul(decimal.NewFromInt(100)).StringFixed(1))
	}
	return s + "."
}

func breakdownDetail(rows []accountDelta) string {
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = fmt.Sprintf("%s: %s -> %s (%s)", r.Path, money(r.Prior), money(r.Current), money(r.Delta))
	}
	return strings.Join(lines, "\n")
}

func varianceParams(cfg *varianceConfig) map[string]any {
	out := map[string]any{
		"metric":          metricPnL,
		"direction":       cfg.direction,
		"min_base_amount": cfg.minBase.String(),
	}
	if cfg.selector.AccountNumber != "" {
		out["account_number"] = cfg.selector.AccountNumber
	}
	if cfg.selector.AccountNameContains != "" {
		out["account_name_contains"] = cfg.selector.AccountNameContains
	}
	if cfg.absolute != nil {
		out["abs_threshold"] = cfg.absolute.String()
	}
	if cfg.percent != nil {
		out["pct_threshold"] = cfg.percent.String()
	}
	return out
}
