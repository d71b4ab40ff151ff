package rules

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/models"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/owner"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/report"
	apperrors "github.com/Vitaliy77/month-end-dashboard-sub000/pkg/errors"
	"github.com/Vitaliy77/month-end-dashboard-sub000/pkg/logger"
)

// maxEvidenceLines caps the matched lines carried in a finding's evidence
const maxEvidenceLines = 50

// Config controls the evaluator
type Config struct {
	// Workers > 1 evaluates rules concurrently. Output order is unchanged.
	Workers int `json:"workers" mapstructure:"workers"`
}

// DefaultConfig evaluates rules sequentially
func DefaultConfig() *Config {
	return &Config{Workers: 1}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	return nil
}

// Clone returns a copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// line is a flattened report row with its amount resolved once
type line struct {
	flat       report.FlatRow
	path       string
	lowerPath  string
	lowerLabel string
	amount     decimal.Decimal
	hasAmount  bool
}

func (l *line) contains(keyword string) bool {
	if keyword == "" {
		return false
	}
	return strings.Contains(l.lowerLabel, keyword) || strings.Contains(l.lowerPath, keyword)
}

// snapshot is the flattened view of one report
type snapshot struct {
	lines []line
}

func newSnapshot(r *report.Report) *snapshot {
	flat := r.Flatten()
	s := &snapshot{lines: make([]line, len(flat))}
	for i, fr := range flat {
		path := fr.JoinedPath()
		amount, ok := report.RowAmount(fr.Row)
		s.lines[i] = line{
			flat:       fr,
			path:       path,
			lowerPath:  strings.ToLower(path),
			lowerLabel: strings.ToLower(fr.Label()),
			amount:     amount,
			hasAmount:  ok,
		}
	}
	return s
}

// inputs is everything a strategy may read. Shared read-only across workers.
type inputs struct {
	current *snapshot
	prior   *snapshot
}

// outcome is a triggered strategy result before identity and ownership are attached
type outcome struct {
	finding models.Finding
	hint    *owner.AccountHint
}

// strategy evaluates one rule. A nil outcome means the rule did not trigger or
// was skipped; reason explains a skip.
type strategy func(rule *models.Rule, in *inputs) (out *outcome, reason string)

// Evaluator turns a rule set and report snapshots into findings
type Evaluator struct {
	config     *Config
	strategies map[Kind]strategy
	log        logger.Logger
}

// NewEvaluator creates an evaluator. A nil config uses DefaultConfig.
func NewEvaluator(config *Config, log logger.Logger) *Evaluator {
	if config == nil {
		config = DefaultConfig()
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Evaluator{
		config: config,
		strategies: map[Kind]strategy{
			KindFixedThreshold:     evaluateUncategorized,
			KindFixedBoolean:       evaluateNegativeIncome,
			KindCustomThreshold:    evaluateCustomThreshold,
			KindVariancePriorMonth: evaluateVariance,
		},
		log: log.WithComponent("rules"),
	}
}

// Evaluate runs every enabled rule in order and returns the triggered
// findings in rule order. prior may be nil; variance rules are then skipped.
// The only error is a missing current report.
func (e *Evaluator) Evaluate(rules []models.Rule, current, prior *report.Report, owners []models.AccountOwner) ([]models.Finding, error) {
	if current == nil {
		return nil, apperrors.EvaluationError(apperrors.CodeMissingReport, "evaluate rules",
			fmt.Errorf("current report is required"))
	}

	in := &inputs{current: newSnapshot(current)}
	if prior != nil {
		in.prior = newSnapshot(prior)
	}

	compiled := compile(rules)
	results := make([]*models.Finding, len(compiled))

	if e.config.Workers > 1 && len(compiled) > 1 {
		var g errgroup.Group
		g.SetLimit(e.config.Workers)
		for i := range compiled {
			g.Go(func() error {
				results[i] = e.evaluateRule(compiled[i], in, owners)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range compiled {
			results[i] = e.evaluateRule(compiled[i], in, owners)
		}
	}

	findings := make([]models.Finding, 0, len(results))
	for _, f := range results {
		if f != nil {
			findings = append(findings, *f)
		}
	}

	e.log.WithFields(logger.Fields{
		"rules":    len(rules),
		"enabled":  len(compiled),
		"findings": len(findings),
	}).Debug("Rule evaluation finished")

	return findings, nil
}

// evaluateRule runs one strategy. A panic inside a strategy drops only
// that rule.
func (e *Evaluator) evaluateRule(c compiledRule, in *inputs, owners []models.AccountOwner) (finding *models.Finding) {
	log := e.log.WithFields(logger.Fields{"rule_id": c.rule.ID, "kind": c.kind.String()})

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", fmt.Sprint(r)).Warn("Rule evaluation failed; rule skipped")
			finding = nil
		}
	}()

	run, ok := e.strategies[c.kind]
	if !ok {
		log.Debug("Unrecognized rule; skipped")
		return nil
	}

	out, reason := run(c.rule, in)
	if out == nil {
		if reason != "" {
			log.WithField("reason", reason).Debug("Rule skipped")
		}
		return nil
	}

	f := out.finding
	f.RuleID = c.rule.ID
	f.RuleName = c.rule.DisplayName()
	if f.Severity == "" {
		f.Severity = c.rule.Severity.OrDefault()
	}
	f.ID = FindingID(c.rule.ID, f.Evidence)
	f.ApplyOwner(owner.Resolve(c.rule, out.hint, owners))
	return &f
}

// matchedLine is one report line carried in evidence
type matchedLine struct {
	Path   string          `json:"path"`
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

func evidenceLines(lines []*line) []matchedLine {
	n := len(lines)
	if n > maxEvidenceLines {
		n = maxEvidenceLines
	}
	out := make([]matchedLine, n)
	for i := 0; i < n; i++ {
		out[i] = matchedLine{Path: lines[i].path, Label: lines[i].flat.Label(), Amount: lines[i].amount}
	}
	return out
}

// severityFor escalates an unset rule severity by how far a measured value
// exceeds its limit. A configured severity is always kept.
func severityFor(rule *models.Rule, value, limit decimal.Decimal) models.Severity {
	if rule.Severity.IsValid() {
		return rule.Severity
	}
	if limit.IsPositive() && value.GreaterThanOrEqual(limit.Mul(decimal.NewFromInt(2))) {
		return models.SeverityHigh
	}
	return models.SeverityMedium
}

func money(d decimal.Decimal) string {
	return report.FormatAccounting(d)
}

func copyParams(p map[string]any) map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
