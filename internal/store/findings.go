package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/models"
	apperrors "github.com/Vitaliy77/month-end-dashboard-sub000/pkg/errors"
	"github.com/Vitaliy77/month-end-dashboard-sub000/pkg/logger"
)

// StoredFinding is a finding as persisted for an organization
type StoredFinding struct {
	models.Finding
	OrgID     string    `json:"org_id"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	LastRunID string    `json:"last_run_id"`
}

// SaveEvaluation records run and upserts its findings. A finding already
// stored for the org keeps its first-seen time; everything else is refreshed.
func (s *Store) SaveEvaluation(ctx context.Context, run *Run, findings []models.Finding) error {
	if run == nil {
		run = NewRun(RunKindEvaluation, "", "")
	}
	run.Kind = RunKindEvaluation
	run.finish()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertRun(ctx, tx, run); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, upsertFindingSQL)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i := range findings {
			if err := upsertFinding(ctx, stmt, run, &findings[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "save evaluation", err).
			WithContext("run_id", run.ID)
	}

	s.log.WithFields(logger.Fields{
		"run_id":   run.ID,
		"org_id":   run.OrgID,
		"findings": len(findings),
	}).Info("Evaluation saved")
	return nil
}

const upsertFindingSQL = `
INSERT INTO findings(
 org_id, id, rule_id, rule_name, severity, title, summary, detail, params_used, evidence,
 owner_name, owner_email, owner_role, owner_source,
 current_value, prior_value, delta, pct_delta,
 first_seen_at, last_seen_at, last_run_id)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(org_id, id) DO UPDATE SET
 rule_name = excluded.rule_name,
 severity = excluded.severity,
 title = excluded.title,
 summary = excluded.summary,
 detail = excluded.detail,
 params_used = excluded.params_used,
 owner_name = excluded.owner_name,
 owner_email = excluded.owner_email,
 owner_role = excluded.owner_role,
 owner_source = excluded.owner_source,
 current_value = excluded.current_value,
 prior_value = excluded.prior_value,
 delta = excluded.delta,
 pct_delta = excluded.pct_delta,
 last_seen_at = excluded.last_seen_at,
 last_run_id = excluded.last_run_id
`

func upsertFinding(ctx context.Context, stmt *sql.Stmt, run *Run, f *models.Finding) error {
	params, err := marshalJSON(f.ParamsUsed, "{}")
	if err != nil {
		return err
	}
	evidence, err := marshalJSON(f.Evidence, "{}")
	if err != nil {
		return err
	}
	source := f.OwnerSource
	if source == "" {
		source = models.OwnerSourceNone
	}

	_, err = stmt.ExecContext(ctx,
		run.OrgID, f.ID, f.RuleID, f.RuleName, string(f.Severity), f.Title, f.Summary, f.Detail, params, evidence,
		f.OwnerName, f.OwnerEmail, f.OwnerRole, string(source),
		nullDecimal(f.CurrentValue), nullDecimal(f.PriorValue), nullDecimal(f.Delta), nullDecimal(f.PctDelta),
		run.FinishedAt, run.FinishedAt, run.ID,
	)
	return err
}

// ListFindings returns every finding stored for orgID, most recently seen
// first
func (s *Store) ListFindings(ctx context.Context, orgID string) ([]StoredFinding, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT org_id, id, rule_id, rule_name, severity, title, summary, detail, params_used, evidence,
	 owner_name, owner_email, owner_role, owner_source,
	 current_value, prior_value, delta, pct_delta,
	 first_seen_at, last_seen_at, last_run_id
	FROM findings WHERE org_id = ?
	ORDER BY last_seen_at DESC, rule_id, id
	`, orgID)
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "list findings", err)
	}
	defer rows.Close()

	var out []StoredFinding
	for rows.Next() {
		var sf StoredFinding
		var severity, source, params, evidence string
		var current, prior, delta, pct decimal.NullDecimal
		if err := rows.Scan(&sf.OrgID, &sf.ID, &sf.RuleID, &sf.RuleName, &severity, &sf.Title, &sf.Summary, &sf.Detail,
			&params, &evidence, &sf.OwnerName, &sf.OwnerEmail, &sf.OwnerRole, &source,
			&current, &prior, &delta, &pct, &sf.FirstSeen, &sf.LastSeen, &sf.LastRunID); err != nil {
			return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "list findings", err)
		}

		sf.Severity = models.Severity(severity)
		sf.OwnerSource = models.OwnerSource(source)
		sf.Evidence = rawJSON(evidence)
		if err := json.Unmarshal([]byte(params), &sf.ParamsUsed); err != nil {
			return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "decode finding params", err).
				WithContext("finding_id", sf.ID)
		}
		sf.CurrentValue = decimalPtr(current)
		sf.PriorValue = decimalPtr(prior)
		sf.Delta = decimalPtr(delta)
		sf.PctDelta = decimalPtr(pct)
		out = append(out, sf)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "list findings", err)
	}
	return out, nil
}

func marshalJSON(v any, empty string) (string, error) {
	if v == nil {
		return empty, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}

func rawJSON(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	return json.RawMessage(s)
}

// nullDecimal stores decimals as exact text
func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func decimalPtr(n decimal.NullDecimal) *decimal.Decimal {
	if !n.Valid {
		return nil
	}
	d := n.Decimal
	return &d
}
