package parsers

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/models"
	apperrors "github.com/Vitaliy77/month-end-dashboard-sub000/pkg/errors"
)

// RuleSet is a user's rule configuration together with the account
// ownership table used to route findings
type RuleSet struct {
	Rules  []models.Rule         `json:"rules" yaml:"rules"`
	Owners []models.AccountOwner `json:"owners,omitempty" yaml:"owners,omitempty"`
}

// EnabledRules returns the number of enabled rules
func (rs *RuleSet) EnabledRules() int {
	n := 0
	for _, r := range rs.Rules {
		if r.Enabled {
			n++
		}
	}
	return n
}

// Validate checks every rule and owner entry and rejects duplicate rule ids
func (rs *RuleSet) Validate() error {
	seen := make(map[string]bool, len(rs.Rules))
	for i := range rs.Rules {
		rule := &rs.Rules[i]
		if err := rule.Validate(); err != nil {
			return apperrors.ValidationError(apperrors.CodeInvalidData, fmt.Sprintf("rules[%d]", i), rule.ID, err)
		}
		if seen[rule.ID] {
			return apperrors.ValidationError(apperrors.CodeDuplicateKey, "rules.id", rule.ID,
				fmt.Errorf("duplicate rule id %q", rule.ID))
		}
		seen[rule.ID] = true
	}
	for i := range rs.Owners {
		if err := rs.Owners[i].Validate(); err != nil {
			return apperrors.ValidationError(apperrors.CodeInvalidData, fmt.Sprintf("owners[%d]", i),
				rs.Owners[i].AccountType, err)
		}
	}
	return nil
}

// LoadRuleSet reads a rule set file. Files ending in .json are decoded as
// JSON, anything else as YAML.
func LoadRuleSet(path string) (*RuleSet, error) {
	file, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return DecodeRuleSetJSON(file, path)
	}
	return DecodeRuleSetYAML(file, path)
}

// DecodeRuleSetYAML decodes and validates a YAML rule set
func DecodeRuleSetYAML(r io.Reader, name string) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.NewDecoder(r).Decode(&rs); err != nil && err != io.EOF {
		return nil, ruleSetParseError(name, err)
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// DecodeRuleSetJSON decodes and validates a JSON rule set. Numeric params
// stay json.Number.
func DecodeRuleSetJSON(r io.Reader, name string) (*RuleSet, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	var rs RuleSet
	if err := decoder.Decode(&rs); err != nil {
		return nil, ruleSetParseError(name, err)
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

func ruleSetParseError(name string, err error) error {
	return apperrors.ParseError(apperrors.CodeInvalidFormat, name, 0, "", "", err).
		WithSuggestion("A rule set needs a top-level 'rules' list and an optional 'owners' list")
}
