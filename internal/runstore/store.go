// Package runstore persists processing runs and their scored test cases to
// SQLite. One run row per pipeline invocation, one case row per record,
// written in a single transaction.
package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nidralux/caseforge/internal/testcase"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       INTEGER PRIMARY KEY AUTOINCREMENT,
	ticket_key   TEXT NOT NULL,
	source       TEXT NOT NULL DEFAULT 'webhook',
	status       TEXT NOT NULL,
	blocks_found INTEGER NOT NULL DEFAULT 0,
	parsed       INTEGER NOT NULL DEFAULT 0,
	incomplete   INTEGER NOT NULL DEFAULT 0,
	avg_score    REAL NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	started_at   TEXT NOT NULL,
	finished_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_cases (
	run_id      INTEGER NOT NULL,
	position    INTEGER NOT NULL,
	case_id     TEXT NOT NULL,
	section     TEXT NOT NULL DEFAULT '',
	score       REAL NOT NULL DEFAULT 0,
	is_complete INTEGER NOT NULL DEFAULT 0,
	payload     TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_runs_ticket ON runs(ticket_key);
`

var ErrNotFound = errors.New("run not found")

type Run struct {
	ID          int64     `db:"run_id"`
	TicketKey   string    `db:"ticket_key"`
	Source      string    `db:"source"`
	Status      string    `db:"status"`
	BlocksFound int       `db:"blocks_found"`
	Parsed      int       `db:"parsed"`
	Incomplete  int       `db:"incomplete"`
	AvgScore    float64   `db:"avg_score"`
	Error       string    `db:"error"`
	StartedAt   time.Time `db:"-"`
	FinishedAt  time.Time `db:"-"`

	Cases []RunCase `db:"-"`
}

type RunCase struct {
	CaseID     string  `db:"case_id"`
	Section    string  `db:"section"`
	Score      float64 `db:"score"`
	IsComplete bool    `db:"is_complete"`

	// Record is the full parsed test case as stored.
	Record testcase.ParsedTestCase `db:"-"`
}

type Store struct {
	db *sqlx.DB
}

func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun writes the run and its cases atomically and returns the run id.
// Records and scores align by index.
func (s *Store) SaveRun(ctx context.Context, run Run, records []testcase.ParsedTestCase, scores []testcase.QualityScore) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (ticket_key, source, status, blocks_found, parsed, incomplete, avg_score, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.TicketKey, run.Source, run.Status, run.BlocksFound, run.Parsed, run.Incomplete,
		run.AvgScore, run.Error, run.StartedAt.UTC().Format(time.RFC3339Nano), run.FinishedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	for i, tc := range records {
		score := 0.0
		if i < len(scores) {
			score = scores[i].Score
		}
		payload, err := json.Marshal(tc)
		if err != nil {
			return 0, fmt.Errorf("marshal case %s: %w", tc.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_cases (run_id, position, case_id, section, score, is_complete, payload)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, i, tc.ID, tc.Section, score, tc.IsComplete, string(payload)); err != nil {
			return 0, fmt.Errorf("insert case %s: %w", tc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

func (s *Store) GetRun(ctx context.Context, runID int64) (Run, error) {
	var row struct {
		Run
		StartedAt  string `db:"started_at"`
		FinishedAt string `db:"finished_at"`
	}
	err := s.db.GetContext(ctx, &row, `SELECT * FROM runs WHERE run_id = ?`, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %d: %w", runID, err)
	}
	run := row.Run
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, row.StartedAt)
	run.FinishedAt, _ = time.Parse(time.RFC3339Nano, row.FinishedAt)

	var caseRows []struct {
		RunCase
		Payload string `db:"payload"`
		Position int   `db:"position"`
		RunID    int64 `db:"run_id"`
	}
	if err := s.db.SelectContext(ctx, &caseRows, `SELECT * FROM run_cases WHERE run_id = ? ORDER BY position`, runID); err != nil {
		return Run{}, fmt.Errorf("get run %d cases: %w", runID, err)
	}
	for _, cr := range caseRows {
		rc := cr.RunCase
		if err := json.Unmarshal([]byte(cr.Payload), &rc.Record); err != nil {
			return Run{}, fmt.Errorf("decode case %s: %w", cr.CaseID, err)
		}
		run.Cases = append(run.Cases, rc)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first, without their cases.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []struct {
		Run
		StartedAt  string `db:"started_at"`
		FinishedAt string `db:"finished_at"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM runs ORDER BY run_id DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	runs := make([]Run, 0, len(rows))
	for _, row := range rows {
		run := row.Run
		run.StartedAt, _ = time.Parse(time.RFC3339Nano, row.StartedAt)
		run.FinishedAt, _ = time.Parse(time.RFC3339Nano, row.FinishedAt)
		runs = append(runs, run)
	}
	return runs, nil
}
