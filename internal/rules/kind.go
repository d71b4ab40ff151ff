// Package rules evaluates month-end detection rules against report snapshots.
//
// Each enabled rule is classified once into a Kind and dispatched to exactly
// one strategy. Strategies are pure functions of the rule, the flattened
// current and prior reports, and return at most one finding. A rule whose
// configuration is incomplete is skipped, never reported as an error.
package rules

import (
	"strings"

	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/models"
)

// Kind is the evaluation strategy a rule is dispatched to
type Kind int

const (
	KindUnknown Kind = iota
	KindFixedThreshold
	KindFixedBoolean
	KindCustomThreshold
	KindVariancePriorMonth
)

// Rule type tags and built-in rule ids recognized by KindOf
const (
	TypeCustomThreshold    = "custom_threshold"
	TypeVariancePriorMonth = "variance_prior_month"

	RuleUncategorizedExpenses = "uncategorized_expenses"
	RuleNegativeIncomeLines   = "negative_income_lines"
)

func (k Kind) String() string {
	switch k {
	case KindFixedThreshold:
		return "fixed_threshold"
	case KindFixedBoolean:
		return "fixed_boolean"
	case KindCustomThreshold:
		return "custom_threshold"
	case KindVariancePriorMonth:
		return "variance_prior_month"
	default:
		return "unknown"
	}
}

// KindOf classifies a rule. The type tag is authoritative; the two built-in
// rules are recognized by exact id. Id prefixes carry no meaning.
func KindOf(rule *models.Rule) Kind {
	switch strings.ToLower(strings.TrimSpace(rule.Type)) {
	case TypeCustomThreshold:
		return KindCustomThreshold
	case TypeVariancePriorMonth:
		return KindVariancePriorMonth
	}

	switch strings.TrimSpace(rule.ID) {
	case RuleUncategorizedExpenses:
		return KindFixedThreshold
	case RuleNegativeIncomeLines:
		return KindFixedBoolean
	}
	return KindUnknown
}

// compiledRule pairs a rule with its kind so dispatch happens once
type compiledRule struct {
	rule *models.Rule
	kind Kind
}

func compile(rules []models.Rule) []compiledRule {
	out := make([]compiledRule, 0, len(rules))
	for i := range rules {
		if !rules[i].Enabled {
			continue
		}
		out = append(out, compiledRule{rule: &rules[i], kind: KindOf(&rules[i])})
	}
	return out
}
