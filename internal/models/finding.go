package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Finding is one triggered rule. It is a value: created per evaluation and
// never mutated. ID is a pure function of RuleID and Evidence.
type Finding struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Severity   Severity       `json:"severity"`
	Summary    string         `json:"summary"`
	Detail     string         `json:"detail"`
	RuleID     string         `json:"rule_id"`
	RuleName   string         `json:"rule_name"`
	ParamsUsed map[string]any `json:"params_used"`
	Evidence   any            `json:"evidence"`

	OwnerName   string      `json:"owner_name,omitempty"`
	OwnerEmail  string      `json:"owner_email,omitempty"`
	OwnerRole   string      `json:"owner_role,omitempty"`
	OwnerSource OwnerSource `json:"owner_source"`

	// Set only for variance findings
	CurrentValue *decimal.Decimal `json:"current_value,omitempty"`
	PriorValue   *decimal.Decimal `json:"prior_value,omitempty"`
	Delta        *decimal.Decimal `json:"delta,omitempty"`
	PctDelta     *decimal.Decimal `json:"pct_delta,omitempty"`
}

// ApplyOwner copies a resolved owner onto the finding
func (f *Finding) ApplyOwner(a OwnerAssignment) {
	f.OwnerName = a.OwnerName
	f.OwnerEmail = a.OwnerEmail
	f.OwnerRole = a.OwnerRole
	f.OwnerSource = a.Source
	if f.OwnerSource == "" {
		f.OwnerSource = OwnerSourceNone
	}
}

// HasVariance reports whether the variance fields are populated
func (f *Finding) HasVariance() bool {
	return f.CurrentValue != nil && f.PriorValue != nil && f.Delta != nil
}

func (f *Finding) String() string {
	return fmt.Sprintf("Finding{ID: %s, Rule: %s, Severity: %s, Title: %q}", f.ID, f.RuleID, f.Severity, f.Title)
}
