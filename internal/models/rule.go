package models

import (
	"fmt"
	"strings"
)

// Severity of a rule and of the findings it produces
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// IsValid checks if the severity is one of the known levels
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// OrDefault returns s, or medium when s is empty or unknown
func (s Severity) OrDefault() Severity {
	if s.IsValid() {
		return s
	}
	return SeverityMedium
}

// Rule is one user-editable detection rule. Params is an open map whose
// meaning depends on the rule kind.
type Rule struct {
	ID         string         `json:"id" yaml:"id"`
	Name       string         `json:"name" yaml:"name"`
	Enabled    bool           `json:"enabled" yaml:"enabled"`
	Severity   Severity       `json:"severity" yaml:"severity"`
	Type       string         `json:"type,omitempty" yaml:"type,omitempty"`
	Params     map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	OwnerName  string         `json:"owner_name,omitempty" yaml:"owner_name,omitempty"`
	OwnerEmail string         `json:"owner_email,omitempty" yaml:"owner_email,omitempty"`
	OwnerRole  string         `json:"owner_role,omitempty" yaml:"owner_role,omitempty"`
}

// Validate checks the fields every rule needs regardless of kind
func (r *Rule) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("rule ID cannot be empty")
	}
	if r.Severity != "" && !r.Severity.IsValid() {
		return fmt.Errorf("rule %s: invalid severity: %s", r.ID, r.Severity)
	}
	return nil
}

// HasOwner reports whether the rule names its own owner
func (r *Rule) HasOwner() bool {
	return strings.TrimSpace(r.OwnerName) != "" || strings.TrimSpace(r.OwnerEmail) != ""
}

// DisplayName returns the rule name, or its ID when unnamed
func (r *Rule) DisplayName() string {
	if strings.TrimSpace(r.Name) != "" {
		return r.Name
	}
	return r.ID
}

// AccountType identifies which report an ownership entry applies to
type AccountType string

const (
	AccountTypeTrialBalance AccountType = "tb"
	AccountTypePnL          AccountType = "pnl"
	AccountTypeBalanceSheet AccountType = "bs"
)

// IsValid checks if the account type is known
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeTrialBalance, AccountTypePnL, AccountTypeBalanceSheet:
		return true
	}
	return false
}

// AccountOwner maps an account (by number or name fragment) to a responsible person
type AccountOwner struct {
	AccountType         AccountType `json:"account_type" yaml:"account_type"`
	AccountNumber       string      `json:"account_number,omitempty" yaml:"account_number,omitempty"`
	AccountNameContains string      `json:"account_name_contains,omitempty" yaml:"account_name_contains,omitempty"`
	OwnerName           string      `json:"owner_name" yaml:"owner_name"`
	OwnerEmail          string      `json:"owner_email" yaml:"owner_email"`
	OwnerRole           string      `json:"owner_role,omitempty" yaml:"owner_role,omitempty"`
	Enabled             bool        `json:"enabled" yaml:"enabled"`
}

// Validate checks that the entry can ever match an account
func (o *AccountOwner) Validate() error {
	if !o.AccountType.IsValid() {
		return fmt.Errorf("invalid account type: %s", o.AccountType)
	}
	if strings.TrimSpace(o.AccountNumber) == "" && strings.TrimSpace(o.AccountNameContains) == "" {
		return fmt.Errorf("owner entry needs an account number or name fragment")
	}
	if strings.TrimSpace(o.OwnerName) == "" && strings.TrimSpace(o.OwnerEmail) == "" {
		return fmt.Errorf("owner entry needs an owner name or email")
	}
	return nil
}

// OwnerSource records where a finding's owner came from
type OwnerSource string

const (
	OwnerSourceRule    OwnerSource = "rule"
	OwnerSourceAccount OwnerSource = "account"
	OwnerSourceNone    OwnerSource = "none"
)

// OwnerAssignment is the resolved owner of a finding
type OwnerAssignment struct {
	OwnerName  string      `json:"owner_name,omitempty"`
	OwnerEmail string      `json:"owner_email,omitempty"`
	OwnerRole  string      `json:"owner_role,omitempty"`
	Source     OwnerSource `json:"owner_source"`
}
