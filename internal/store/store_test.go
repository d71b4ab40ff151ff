package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/matcher"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/models"
	apperrors "github.com/Vitaliy77/month-end-dashboard-sub000/pkg/errors"
	"github.com/Vitaliy77/month-end-dashboard-sub000/pkg/logger"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "monthend.db"), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleFinding() models.Finding {
	current := decimal.RequireFromString("1200.50")
	prior := decimal.RequireFromString("1000")
	delta := current.Sub(prior)
	return models.Finding{
		ID:          "variance_pnl:1a2b3c4d",
		Title:       "P&L variance vs prior month",
		Severity:    models.SeverityHigh,
		Summary:     "Net income moved by $200.50",
		RuleID:      "variance_pnl",
		RuleName:    "Variance",
		ParamsUsed:  map[string]any{"abs_threshold": "100"},
		Evidence:    map[string]any{"delta": "200.50"},
		OwnerName:   "Alice",
		OwnerEmail:  "alice@example.com",
		OwnerSource: models.OwnerSourceRule,

		CurrentValue: &current,
		PriorValue:   &prior,
		Delta:        &delta,
	}
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("", logger.Nop())
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, apperrors.CodeMissingConfig, appErr.Code)
}

func TestMigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monthend.db")
	require.NoError(t, Migrate(path))
	require.NoError(t, Migrate(path))

	s, err := Open(path, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestSaveEvaluationUpsertsFindings(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s := openTestStore(t)

	first := NewRun(RunKindEvaluation, "org-1", "2025-03")
	first.FinishedAt = time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveEvaluation(ctx, first, []models.Finding{sampleFinding()}))

	updated := sampleFinding()
	updated.Summary = "Net income moved again"
	second := NewRun(RunKindEvaluation, "org-1", "2025-03")
	second.FinishedAt = time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveEvaluation(ctx, second, []models.Finding{updated}))

	findings, err := s.ListFindings(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, findings, 1)

	got := findings[0]
	require.Equal(t, "variance_pnl:1a2b3c4d", got.ID)
	require.Equal(t, "Net income moved again", got.Summary)
	require.True(t, got.FirstSeen.Equal(first.FinishedAt), "first seen %s", got.FirstSeen)
	require.True(t, got.LastSeen.Equal(second.FinishedAt), "last seen %s", got.LastSeen)
	require.Equal(t, second.ID, got.LastRunID)
	require.Equal(t, models.SeverityHigh, got.Severity)
	require.Equal(t, models.OwnerSourceRule, got.OwnerSource)
	require.Equal(t, "100", got.ParamsUsed["abs_threshold"])
	require.JSONEq(t, `{"delta":"200.50"}`, string(got.Evidence.(json.RawMessage)))

	require.NotNil(t, got.CurrentValue)
	require.True(t, got.CurrentValue.Equal(decimal.RequireFromString("1200.50")))
	require.True(t, got.Delta.Equal(decimal.RequireFromString("200.50")))
	require.Nil(t, got.PctDelta)

	other, err := s.ListFindings(ctx, "org-2")
	require.NoError(t, err)
	require.Empty(t, other)

	runs, err := s.ListRuns(ctx, RunKindEvaluation, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
}

func TestSaveEvaluationAssignsRunID(t *testing.T) {
	s := openTestStore(t)
	run := &Run{OrgID: "org-1"}
	require.NoError(t, s.SaveEvaluation(context.Background(), run, nil))
	require.NotEmpty(t, run.ID)
	require.Equal(t, RunKindEvaluation, run.Kind)
	require.False(t, run.FinishedAt.IsZero())
}

func TestSaveMatchRun(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	posted := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	batch := &matcher.BatchResult{
		Results: []matcher.LineResult{
			{
				LineIndex:     0,
				Line:          models.NewStatementLine("L1", decimal.RequireFromString("1250.00"), posted, "ACME Corp Payment"),
				Status:        models.MatchStatusMatched,
				TransactionID: "T1",
				Score:         1,
				Candidates: []matcher.Candidate{{
					TransactionID: "T1",
					Score:         1,
					Reasons:       []string{"Exact amount match", "Same day"},
				}},
			},
			{
				LineIndex: 1,
				Line:      models.NewStatementLine("L2", decimal.RequireFromString("-45.50"), posted.AddDate(0, 0, 1), "Coffee"),
				Status:    models.MatchStatusUnmatched,
			},
		},
		Summary: matcher.Summary{TotalLines: 2, Matched: 1, Unmatched: 1},
	}

	run := NewRun(RunKindMatch, "org-1", "2025-03")
	require.NoError(t, s.SaveMatchRun(ctx, run, batch))

	matches, err := s.ListMatches(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	require.Equal(t, "L1", matches[0].LineID)
	require.Equal(t, models.MatchStatusMatched, matches[0].Status)
	require.Equal(t, "T1", matches[0].TransactionID)
	require.True(t, matches[0].PostedDate.Equal(posted))
	require.True(t, matches[0].Amount.Equal(decimal.RequireFromString("1250")))
	require.Len(t, matches[0].Candidates, 1)
	require.Equal(t, []string{"Exact amount match", "Same day"}, matches[0].Candidates[0].Reasons)

	require.Equal(t, models.MatchStatusUnmatched, matches[1].Status)
	require.Empty(t, matches[1].TransactionID)
	require.Empty(t, matches[1].Candidates)

	runs, err := s.ListRuns(ctx, RunKindMatch, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, run.ID, runs[0].ID)
	require.Contains(t, string(runs[0].Summary.(json.RawMessage)), `"matched":1`)
}
