// Package store persists evaluation runs, findings and match results in
// SQLite. Findings are upserted by their deterministic id so re-running the
// same month refreshes last-seen data instead of duplicating rows.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/Vitaliy77/month-end-dashboard-sub000/pkg/errors"
	"github.com/Vitaliy77/month-end-dashboard-sub000/pkg/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// RunKind distinguishes evaluation runs from matching runs
type RunKind string

const (
	RunKindEvaluation RunKind = "evaluation"
	RunKindMatch      RunKind = "match"
)

// Run is one recorded invocation of the engine
type Run struct {
	ID         string    `json:"id"`
	Kind       RunKind   `json:"kind"`
	OrgID      string    `json:"org_id"`
	Period     string    `json:"period"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Summary    any       `json:"summary,omitempty"`
}

// NewRun starts a run of the given kind with a fresh id
func NewRun(kind RunKind, orgID, period string) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Kind:      kind,
		OrgID:     orgID,
		Period:    period,
		StartedAt: now(),
	}
}

// finish fills the id and timestamps a caller left unset
func (r *Run) finish() {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.FinishedAt.IsZero() {
		r.FinishedAt = now()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = r.FinishedAt
	}
}

// Store is a SQLite-backed result store
type Store struct {
	db   *sql.DB
	path string
	log  logger.Logger
}

// Open opens the database at path and applies pending migrations
func Open(path string, log logger.Logger) (*Store, error) {
	if path == "" {
		return nil, apperrors.ConfigurationError(apperrors.CodeMissingConfig, "store.path", path,
			errors.New("store path is empty"))
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	log = log.WithComponent("store")

	if err := Migrate(path); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeStoreUnavailable, "open database", err)
	}
	db.SetMaxOpenConns(1) // sqlite
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, apperrors.StorageError(apperrors.CodeStoreUnavailable, "open database", err)
	}

	log.WithField("path", path).Debug("Store opened")
	return &Store{db: db, path: path, log: log}, nil
}

// Migrate applies all up migrations embedded in the binary
func Migrate(path string) error {
	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return apperrors.StorageError(apperrors.CodeMigrationFailed, "load migrations", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, fmt.Sprintf("sqlite3://%s?_foreign_keys=on", path))
	if err != nil {
		return apperrors.StorageError(apperrors.CodeMigrationFailed, "prepare migrations", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return apperrors.StorageError(apperrors.CodeMigrationFailed, "apply migrations", err)
	}
	return nil
}

// Close releases the database handle
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// withTx runs fn in a transaction
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func insertRun(ctx context.Context, tx *sql.Tx, run *Run) error {
	summary, err := marshalJSON(run.Summary, "{}")
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs(id, kind, org_id, period, started_at, finished_at, summary)
	VALUES(?, ?, ?, ?, ?, ?, ?)
	`, run.ID, string(run.Kind), run.OrgID, run.Period, run.StartedAt, run.FinishedAt, summary)
	return err
}

// ListRuns returns the most recent runs of kind, newest first. A
// non-positive limit returns all of them.
func (s *Store) ListRuns(ctx context.Context, kind RunKind, limit int) ([]Run, error) {
	query := `SELECT id, kind, org_id, period, started_at, finished_at, summary FROM runs WHERE kind = ? ORDER BY started_at DESC, id`
	args := []any{string(kind)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "list runs", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var run Run
		var kindText, summary string
		if err := rows.Scan(&run.ID, &kindText, &run.OrgID, &run.Period, &run.StartedAt, &run.FinishedAt, &summary); err != nil {
			return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "list runs", err)
		}
		run.Kind = RunKind(kindText)
		run.Summary = rawJSON(summary)
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "list runs", err)
	}
	return out, nil
}

// now returns UTC time truncated to seconds
func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
