package matcher

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/models"
	apperrors "github.com/Vitaliy77/month-end-dashboard-sub000/pkg/errors"
	"github.com/Vitaliy77/month-end-dashboard-sub000/pkg/logger"
)

// BatchResult is the outcome of matching a whole statement
type BatchResult struct {
	Results        []LineResult  `json:"results"`
	Summary        Summary       `json:"summary"`
	ProcessingTime time.Duration `json:"processing_time"`
}

// Summary provides aggregate statistics about a matching pass. SharedBindings
// counts transactions bound by more than one line.
type Summary struct {
	TotalLines        int             `json:"total_lines"`
	TotalTransactions int             `json:"total_transactions"`
	Matched           int             `json:"matched"`
	Ambiguous         int             `json:"ambiguous"`
	Unmatched         int             `json:"unmatched"`
	SharedBindings    int             `json:"shared_bindings"`
	MatchedAmount     decimal.Decimal `json:"matched_amount"`
	UnmatchedAmount   decimal.Decimal `json:"unmatched_amount"`
	MatchRate         float64         `json:"match_rate"`
}

// Engine classifies batches of statement lines
type Engine struct {
	matcher *Matcher
	log     logger.Logger
}

// NewEngine creates an engine. A nil config uses DefaultMatchingConfig.
func NewEngine(config *MatchingConfig, log logger.Logger) *Engine {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Engine{matcher: NewMatcher(config), log: log.WithComponent("matcher")}
}

// Matcher returns the pairwise matcher the engine uses
func (e *Engine) Matcher() *Matcher {
	return e.matcher
}

// MatchAll classifies every line independently against txns. Results are in
// line order. Lines never compete for a transaction within one pass.
func (e *Engine) MatchAll(ctx context.Context, lines []*models.StatementLine, txns []*models.AccountingTransaction) (*BatchResult, error) {
	config := e.matcher.Config
	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "match", config.String(), err)
	}
	for i, line := range lines {
		if line == nil {
			return nil, apperrors.MatchingError(apperrors.CodeInvalidInput, "match statement lines",
				fmt.Errorf("statement line %d is nil", i))
		}
	}

	start := time.Now()
	index := NewTransactionIndex(txns)
	results := make([]LineResult, len(lines))
	progress := logger.NewProgressTracker("match statement lines", int64(len(lines)), e.log)

	classify := func(i int) {
		candidates := index.GetCandidates(lines[i], config.NearDateDays)
		r := e.matcher.Classify(lines[i], candidates)
		r.LineIndex = i
		results[i] = r
		progress.Add(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Workers)
	for i := range lines {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			classify(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperrors.MatchingError(apperrors.CodeProcessingError, "match statement lines", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.MatchingError(apperrors.CodeProcessingError, "match statement lines", err)
	}
	progress.Complete()
	stats := progress.Stats()

	batch := &BatchResult{
		Results:        results,
		Summary:        summarize(results, len(txns)),
		ProcessingTime: time.Since(start),
	}

	e.log.WithFields(logger.Fields{
		"lines":     batch.Summary.TotalLines,
		"matched":   batch.Summary.Matched,
		"ambiguous": batch.Summary.Ambiguous,
		"unmatched": batch.Summary.Unmatched,
		"duration":  batch.ProcessingTime.String(),
		"rate":      fmt.Sprintf("%.2f lines/sec", stats.Rate),
	}).Info("Statement matching completed")

	return batch, nil
}

func summarize(results []LineResult, totalTxns int) Summary {
	summary := Summary{
		TotalLines:        len(results),
		TotalTransactions: totalTxns,
		MatchedAmount:     decimal.Zero,
		UnmatchedAmount:   decimal.Zero,
	}

	bindings := make(map[string]int)
	for _, r := range results {
		switch r.Status {
		case models.MatchStatusMatched:
			summary.Matched++
			summary.MatchedAmount = summary.MatchedAmount.Add(r.Line.Amount.Abs())
			bindings[r.TransactionID]++
		case models.MatchStatusAmbiguous:
			summary.Ambiguous++
			summary.UnmatchedAmount = summary.UnmatchedAmount.Add(r.Line.Amount.Abs())
		default:
			summary.Unmatched++
			summary.UnmatchedAmount = summary.UnmatchedAmount.Add(r.Line.Amount.Abs())
		}
	}
	for _, n := range bindings {
		if n > 1 {
			summary.SharedBindings++
		}
	}
	if summary.TotalLines > 0 {
		summary.MatchRate = float64(summary.Matched) / float64(summary.TotalLines)
	}
	return summary
}
