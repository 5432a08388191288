package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteSink persists run records to a local SQLite file
// (modernc.org/sqlite driver, CGO-free). Use ":memory:" for tests.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens the database at path and ensures the schema.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("history: empty sqlite path")
	}
	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// busy timeout helps with short concurrent locks
	_, _ = db.Exec("PRAGMA busy_timeout=3000;")
	s := &SQLiteSink{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSink) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL UNIQUE,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL,
			outcome TEXT NOT NULL,
			exit_code INTEGER NOT NULL,
			log_path TEXT NOT NULL,
			phases TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_outcome ON runs(outcome);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// Send inserts one run record. An existing run_id is overwritten; re-sending
// the same finished run is harmless.
func (s *SQLiteSink) Send(ctx context.Context, rec Record) error {
	phases, err := json.Marshal(rec.Phases)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs(run_id, started_at, finished_at, outcome, exit_code, log_path, phases)
		VALUES($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT(run_id) DO UPDATE SET
			started_at=EXCLUDED.started_at,
			finished_at=EXCLUDED.finished_at,
			outcome=EXCLUDED.outcome,
			exit_code=EXCLUDED.exit_code,
			log_path=EXCLUDED.log_path,
			phases=EXCLUDED.phases;`,
		rec.RunID, rec.StartedAt.UTC(), rec.FinishedAt.UTC(), string(rec.Outcome),
		rec.ExitCode, rec.LogPath, string(phases))
	return err
}

// GetByRunID loads one record back, mainly for tests and the CLI.
func (s *SQLiteSink) GetByRunID(ctx context.Context, runID string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, started_at, finished_at, outcome, exit_code, log_path, phases
		FROM runs WHERE run_id=$1;`, runID)
	var rec Record
	var outcome, phases string
	if err := row.Scan(&rec.RunID, &rec.StartedAt, &rec.FinishedAt, &outcome,
		&rec.ExitCode, &rec.LogPath, &phases); err != nil {
		return Record{}, err
	}
	rec.Outcome = Outcome(outcome)
	if err := json.Unmarshal([]byte(phases), &rec.Phases); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *SQLiteSink) Close() error { return s.db.Close() }
