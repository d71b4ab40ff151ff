package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/matcher"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/models"
	apperrors "github.com/Vitaliy77/month-end-dashboard-sub000/pkg/errors"
	"github.com/Vitaliy77/month-end-dashboard-sub000/pkg/logger"
)

// StoredMatch is one persisted line classification
type StoredMatch struct {
	RunID         string              `json:"run_id"`
	LineIndex     int                 `json:"line_index"`
	LineID        string              `json:"line_id"`
	PostedDate    time.Time           `json:"posted_date"`
	Amount        decimal.Decimal     `json:"amount"`
	Description   string              `json:"description"`
	Status        models.MatchStatus  `json:"status"`
	TransactionID string              `json:"transaction_id,omitempty"`
	Score         float64             `json:"score"`
	Candidates    []matcher.Candidate `json:"candidates"`
}

// SaveMatchRun records run together with every line result of batch
func (s *Store) SaveMatchRun(ctx context.Context, run *Run, batch *matcher.BatchResult) error {
	if run == nil {
		run = NewRun(RunKindMatch, "", "")
	}
	run.Kind = RunKindMatch
	run.finish()

	var results []matcher.LineResult
	if batch != nil {
		results = batch.Results
		if run.Summary == nil {
			run.Summary = batch.Summary
		}
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertRun(ctx, tx, run); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO match_results(
		 run_id, line_index, line_id, posted_date, amount, description, status, transaction_id, score, candidates)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range results {
			if r.Line == nil {
				continue
			}
			candidates, err := marshalJSON(r.Candidates, "[]")
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx,
				run.ID, r.LineIndex, r.Line.ID, r.Line.PostedDate.Format(models.DateLayout), r.Line.Amount.String(),
				r.Line.Description, string(r.Status), r.TransactionID, r.Score, candidates,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "save match run", err).
			WithContext("run_id", run.ID)
	}

	s.log.WithFields(logger.Fields{
		"run_id": run.ID,
		"lines":  len(results),
	}).Info("Match run saved")
	return nil
}

// ListMatches returns the line results of a match run in line order
func (s *Store) ListMatches(ctx context.Context, runID string) ([]StoredMatch, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT run_id, line_index, line_id, posted_date, amount, description, status, transaction_id, score, candidates
	FROM match_results WHERE run_id = ? ORDER BY line_index
	`, runID)
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "list matches", err)
	}
	defer rows.Close()

	var out []StoredMatch
	for rows.Next() {
		var m StoredMatch
		var posted, amount, status, candidates string
		if err := rows.Scan(&m.RunID, &m.LineIndex, &m.LineID, &posted, &amount, &m.Description,
			&status, &m.TransactionID, &m.Score, &candidates); err != nil {
			return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "list matches", err)
		}

		if m.PostedDate, err = time.Parse(models.DateLayout, posted); err != nil {
			return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "decode match date", err)
		}
		if m.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "decode match amount", err)
		}
		m.Status = models.MatchStatus(status)
		if err := json.Unmarshal([]byte(candidates), &m.Candidates); err != nil {
			return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "decode match candidates", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "list matches", err)
	}
	return out, nil
}
