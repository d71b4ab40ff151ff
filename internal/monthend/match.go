package monthend

import (
	"context"
	"fmt"
	"time"

	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/matcher"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/models"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/parsers"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/report"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/store"
	apperrors "github.com/Vitaliy77/month-end-dashboard-sub000/pkg/errors"
	"github.com/Vitaliy77/month-end-dashboard-sub000/pkg/logger"
)

// DateRange bounds the statement lines of a match run, inclusive on both ends
type DateRange struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Contains reports whether t falls within the range
func (d DateRange) Contains(t time.Time) bool {
	day := models.DateOnly(t)
	if d.Start != nil && day.Before(models.DateOnly(*d.Start)) {
		return false
	}
	if d.End != nil && day.After(models.DateOnly(*d.End)) {
		return false
	}
	return true
}

// MatchRequest names the inputs of one matching pass
type MatchRequest struct {
	OrgID  string
	Period string

	StatementsFile   string
	TransactionsFile string

	Lines        []*models.StatementLine
	Transactions []*models.AccountingTransaction

	// Range restricts which statement lines are classified. Transactions are
	// never filtered so lines near the boundary still see their candidates.
	Range DateRange
}

// Validate checks that both sides of the match are provided
func (r *MatchRequest) Validate() error {
	if r.Lines == nil && r.StatementsFile == "" {
		return fmt.Errorf("statement lines or a statements file are required")
	}
	if r.Transactions == nil && r.TransactionsFile == "" {
		return fmt.Errorf("transactions or a transactions file are required")
	}
	if r.Range.Start != nil && r.Range.End != nil && r.Range.Start.After(*r.Range.End) {
		return fmt.Errorf("start date must be before end date")
	}
	return nil
}

// MatchResult is the outcome of a matching pass
type MatchResult struct {
	RunID            string               `json:"run_id,omitempty"`
	OrgID            string               `json:"org_id,omitempty"`
	Period           string               `json:"period,omitempty"`
	Batch            *matcher.BatchResult `json:"batch"`
	StatementStats   *parsers.ParseStats  `json:"statement_stats,omitempty"`
	TransactionStats *parsers.ParseStats  `json:"transaction_stats,omitempty"`
	OutOfRange       int                  `json:"out_of_range"`
	ProcessingTime   time.Duration        `json:"processing_time"`
	Persisted        bool                 `json:"persisted"`
}

// Match loads statement lines and transactions, classifies every line and
// persists the run when a store is configured
func (s *Service) Match(ctx context.Context, req *MatchRequest) (*MatchResult, error) {
	if req == nil {
		return nil, apperrors.ValidationError(apperrors.CodeMissingField, "match_request", nil, nil)
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.ValidationError(apperrors.CodeInvalidInput, "match_request", nil, err).
			WithSuggestion("Provide --statements and --transactions")
	}

	start := time.Now()
	result := &MatchResult{OrgID: req.OrgID, Period: req.Period}

	lines := req.Lines
	if lines == nil {
		parsed, stats, err := s.statements.ParseFile(ctx, req.StatementsFile)
		if err != nil {
			return nil, err
		}
		lines, result.StatementStats = parsed, stats
		s.logParseStats("statements", stats)
	}

	txns := req.Transactions
	if txns == nil {
		parsed, stats, err := s.transactions.ParseFile(ctx, req.TransactionsFile)
		if err != nil {
			return nil, err
		}
		txns, result.TransactionStats = parsed, stats
		s.logParseStats("transactions", stats)
	}

	inRange := make([]*models.StatementLine, 0, len(lines))
	for _, line := range lines {
		if line != nil && !req.Range.Contains(line.PostedDate) {
			result.OutOfRange++
			continue
		}
		inRange = append(inRange, line)
	}

	batch, err := s.engine.MatchAll(ctx, inRange, txns)
	if err != nil {
		return nil, err
	}
	result.Batch = batch

	run := store.NewRun(store.RunKindMatch, req.OrgID, req.Period)
	run.Summary = batch.Summary
	result.RunID = run.ID

	result.Persisted, err = s.persist("save match run", func(st ResultStore) error {
		return st.SaveMatchRun(ctx, run, batch)
	})
	if err != nil {
		return nil, err
	}
	result.ProcessingTime = elapsed(start)

	s.log.WithFields(logger.Fields{
		"run_id":       result.RunID,
		"lines":        batch.Summary.TotalLines,
		"out_of_range": result.OutOfRange,
		"match_rate":   fmt.Sprintf("%.1f%%", batch.Summary.MatchRate*100),
		"duration":     result.ProcessingTime.String(),
	}).Info("Matching completed")
	return result, nil
}

func (s *Service) logParseStats(kind string, stats *parsers.ParseStats) {
	log := s.log.WithFields(logger.Fields{
		"input":   kind,
		"file":    stats.File,
		"parsed":  stats.ParsedRows,
		"skipped": stats.SkippedRows,
	})
	if stats.HasErrors() {
		log.WithField("sample_errors", stats.SampleErrors(3)).Warn("Some rows could not be parsed and were skipped")
		return
	}
	log.Debug("Input parsed")
}

// InspectResult describes how the engine reads a report
type InspectResult struct {
	File        string                   `json:"file"`
	ReportName  string                   `json:"report_name,omitempty"`
	Period      string                   `json:"period,omitempty"`
	Diagnostics []report.Diagnostic      `json:"diagnostics"`
	Summary     report.DiagnosticSummary `json:"summary"`
}

// Inspect loads the report at path and returns the path, label and amount
// the engine resolves for every row
func (s *Service) Inspect(ctx context.Context, path string) (*InspectResult, error) {
	rep, err := parsers.LoadReport(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.InternalError(apperrors.CodeProcessingError, "inspect report", err)
	}

	diagnostics, summary := report.Diagnose(rep.TopRows())
	s.log.WithFields(logger.Fields{
		"file":           path,
		"rows":           summary.TotalRows,
		"without_amount": summary.WithoutAmount,
	}).Debug("Report inspected")

	return &InspectResult{
		File:        path,
		ReportName:  rep.Header.ReportName,
		Period:      rep.Period(),
		Diagnostics: diagnostics,
		Summary:     summary,
	}, nil
}
