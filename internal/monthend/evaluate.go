package monthend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/models"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/parsers"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/report"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/store"
	apperrors "github.com/Vitaliy77/month-end-dashboard-sub000/pkg/errors"
	"github.com/Vitaliy77/month-end-dashboard-sub000/pkg/logger"
)

// EvaluateRequest names the inputs of one evaluation. Each input may be given
// as a file or already loaded; a loaded value wins over its file.
type EvaluateRequest struct {
	OrgID  string
	Period string

	RulesFile   string
	CurrentFile string
	PriorFile   string

	RuleSet *parsers.RuleSet
	Current *report.Report
	Prior   *report.Report
}

// Validate checks that the rule set and current report are provided
func (r *EvaluateRequest) Validate() error {
	if r.RuleSet == nil && r.RulesFile == "" {
		return fmt.Errorf("a rule set or rules file is required")
	}
	if r.Current == nil && r.CurrentFile == "" {
		return fmt.Errorf("a current report or report file is required")
	}
	return nil
}

// FindingSummary counts findings by severity and rule
type FindingSummary struct {
	Total      int                     `json:"total"`
	BySeverity map[models.Severity]int `json:"by_severity"`
	ByRule     map[string]int          `json:"by_rule"`
	Owned      int                     `json:"owned"`
}

// EvaluateResult is the outcome of an evaluation
type EvaluateResult struct {
	RunID          string           `json:"run_id,omitempty"`
	OrgID          string           `json:"org_id,omitempty"`
	Period         string           `json:"period,omitempty"`
	RulesTotal     int              `json:"rules_total"`
	RulesEnabled   int              `json:"rules_enabled"`
	HasPrior       bool             `json:"has_prior"`
	Findings       []models.Finding `json:"findings"`
	Summary        FindingSummary   `json:"summary"`
	ProcessingTime time.Duration    `json:"processing_time"`
	Persisted      bool             `json:"persisted"`
}

// Evaluate loads the inputs, runs every enabled rule and persists the
// findings when a store is configured
func (s *Service) Evaluate(ctx context.Context, req *EvaluateRequest) (*EvaluateResult, error) {
	if req == nil {
		return nil, apperrors.ValidationError(apperrors.CodeMissingField, "evaluate_request", nil, nil)
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.ValidationError(apperrors.CodeMissingField, "evaluate_request", nil, err).
			WithSuggestion("Provide --rules and --current")
	}

	start := time.Now()
	run := store.NewRun(store.RunKindEvaluation, req.OrgID, req.Period)

	ruleSet, current, prior, err := s.loadEvaluationInputs(req)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.EvaluationError(apperrors.CodeProcessingError, "evaluate rules", err)
	}
	if run.Period == "" {
		run.Period = current.Period()
	}

	var findings []models.Finding
	err = logger.TimedOperation("evaluate rules", s.log, func() error {
		var evalErr error
		findings, evalErr = s.evaluator.Evaluate(ruleSet.Rules, current, prior, ruleSet.Owners)
		return evalErr
	})
	if err != nil {
		return nil, err
	}

	result := &EvaluateResult{
		RunID:        run.ID,
		OrgID:        run.OrgID,
		Period:       run.Period,
		RulesTotal:   len(ruleSet.Rules),
		RulesEnabled: ruleSet.EnabledRules(),
		HasPrior:     prior != nil,
		Findings:     findings,
		Summary:      summarizeFindings(findings),
	}
	run.Summary = result.Summary
	run.FinishedAt = time.Now().UTC().Truncate(time.Second)

	result.Persisted, err = s.persist("save evaluation", func(st ResultStore) error {
		return st.SaveEvaluation(ctx, run, findings)
	})
	if err != nil {
		return nil, err
	}
	result.ProcessingTime = elapsed(start)

	s.log.WithFields(logger.Fields{
		"run_id":   result.RunID,
		"period":   result.Period,
		"rules":    result.RulesEnabled,
		"findings": result.Summary.Total,
		"duration": result.ProcessingTime.String(),
	}).Info("Evaluation completed")
	return result, nil
}

func (s *Service) loadEvaluationInputs(req *EvaluateRequest) (*parsers.RuleSet, *report.Report, *report.Report, error) {
	ruleSet := req.RuleSet
	if ruleSet == nil {
		loaded, err := parsers.LoadRuleSet(req.RulesFile)
		if err != nil {
			return nil, nil, nil, err
		}
		ruleSet = loaded
	}

	current := req.Current
	if current == nil {
		loaded, err := parsers.LoadReport(req.CurrentFile)
		if err != nil {
			return nil, nil, nil, err
		}
		current = loaded
	}

	prior := req.Prior
	if prior == nil && req.PriorFile != "" {
		loaded, err := parsers.LoadReport(req.PriorFile)
		if err != nil {
			return nil, nil, nil, err
		}
		prior = loaded
	}

	s.log.WithFields(logger.Fields{
		"rules":     len(ruleSet.Rules),
		"owners":    len(ruleSet.Owners),
		"has_prior": prior != nil,
	}).Debug("Evaluation inputs loaded")
	return ruleSet, current, prior, nil
}

func summarizeFindings(findings []models.Finding) FindingSummary {
	summary := FindingSummary{
		Total:      len(findings),
		BySeverity: make(map[models.Severity]int),
		ByRule:     make(map[string]int),
	}
	for _, f := range findings {
		summary.BySeverity[f.Severity]++
		summary.ByRule[f.RuleID]++
		if f.OwnerSource != "" && f.OwnerSource != models.OwnerSourceNone {
			summary.Owned++
		}
	}
	return summary
}

// SeverityCounts returns the summary's severity counts from high to low
func (fs FindingSummary) SeverityCounts() []SeverityCount {
	out := make([]SeverityCount, 0, len(fs.BySeverity))
	for sev, n := range fs.BySeverity {
		out = append(out, SeverityCount{Severity: sev, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		return severityRank(out[i].Severity) > severityRank(out[j].Severity)
	})
	return out
}

// SeverityCount is one row of SeverityCounts
type SeverityCount struct {
	Severity models.Severity
	Count    int
}

func severityRank(s models.Severity) int {
	switch s {
	case models.SeverityHigh:
		return 3
	case models.SeverityMedium:
		return 2
	case models.SeverityLow:
		return 1
	}
	return 0
}
