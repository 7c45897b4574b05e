// Package store persists replay runs and their step results in SQLite so
// past runs can be listed and inspected after the browser is gone.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/v0xg/webreplay/internal/executor"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	log_path    TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	total       INTEGER NOT NULL DEFAULT 0,
	passed      INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	started_at  TEXT NOT NULL,
	finished_at TEXT
);

CREATE TABLE IF NOT EXISTS steps (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	step       INTEGER NOT NULL,
	action     TEXT NOT NULL,
	success    INTEGER NOT NULL,
	method     TEXT NOT NULL,
	error      TEXT,
	timestamp  TEXT NOT NULL,
	used_vlm   INTEGER NOT NULL DEFAULT 0,
	assertions TEXT
);

CREATE TABLE IF NOT EXISTS screenshots (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL REFERENCES runs(id),
	step   INTEGER NOT NULL,
	kind   TEXT NOT NULL,
	path   TEXT NOT NULL
);
`

// Run is one persisted replay run.
type Run struct {
	ID         string
	LogPath    string
	Status     string
	Total      int
	Passed     int
	Failed     int
	StartedAt  string
	FinishedAt string
}

// Step is one persisted step result.
type Step struct {
	RunID      string
	Step       int
	Action     string
	Success    bool
	Method     string
	Error      string
	Timestamp  string
	UsedVLM    bool
	Assertions []executor.AssertionResult
}

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun registers a new run and returns its id.
func (s *Store) CreateRun(logPath string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO runs (id, log_path, started_at) VALUES (?, ?, ?)`,
		id, logPath, time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return id, nil
}

// FinishRun records the final status and counts for a run.
func (s *Store) FinishRun(runID, status string, total, passed, failed int) error {
	_, err := s.db.Exec(
		`UPDATE runs SET status = ?, total = ?, passed = ?, failed = ?, finished_at = ? WHERE id = ?`,
		status, total, passed, failed, time.Now().Format(time.RFC3339), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// SaveStep persists one step result and its screenshot references.
func (s *Store) SaveStep(runID string, r executor.StepResult) error {
	var assertions []byte
	if len(r.Assertions) > 0 {
		var err error
		assertions, err = json.Marshal(r.Assertions)
		if err != nil {
			return fmt.Errorf("marshal assertions: %w", err)
		}
	}

	_, err := s.db.Exec(
		`INSERT INTO steps (run_id, step, action, success, method, error, timestamp, used_vlm, assertions)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, r.Step, r.Action, r.Success, r.Method, r.Error, r.Timestamp,
		r.UsedVLMDescription, string(assertions),
	)
	if err != nil {
		return fmt.Errorf("save step %d: %w", r.Step, err)
	}

	for kind, path := range map[string]string{"before": r.ScreenshotBefore, "after": r.ScreenshotAfter} {
		if path == "" {
			continue
		}
		if _, err := s.db.Exec(
			`INSERT INTO screenshots (run_id, step, kind, path) VALUES (?, ?, ?, ?)`,
			runID, r.Step, kind, path,
		); err != nil {
			return fmt.Errorf("save screenshot ref: %w", err)
		}
	}
	return nil
}

// ListRuns returns all runs, most recent first.
func (s *Store) ListRuns() ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT id, log_path, status, total, passed, failed, started_at, COALESCE(finished_at, '')
		 FROM runs ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.LogPath, &r.Status, &r.Total, &r.Passed, &r.Failed, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListSteps returns the steps of a run in execution order.
func (s *Store) ListSteps(runID string) ([]Step, error) {
	rows, err := s.db.Query(
		`SELECT run_id, step, action, success, method, COALESCE(error, ''), timestamp, used_vlm, COALESCE(assertions, '')
		 FROM steps WHERE run_id = ? ORDER BY step`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var st Step
		var assertions string
		if err := rows.Scan(&st.RunID, &st.Step, &st.Action, &st.Success, &st.Method, &st.Error, &st.Timestamp, &st.UsedVLM, &assertions); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		if assertions != "" {
			if err := json.Unmarshal([]byte(assertions), &st.Assertions); err != nil {
				return nil, fmt.Errorf("parse assertions: %w", err)
			}
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

// Screenshots returns the screenshot paths of a run keyed by "step/kind".
func (s *Store) Screenshots(runID string) (map[string]string, error) {
	rows, err := s.db.Query(
		`SELECT step, kind, path FROM screenshots WHERE run_id = ?`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list screenshots: %w", err)
	}
	defer rows.Close()

	shots := make(map[string]string)
	for rows.Next() {
		var step int
		var kind, path string
		if err := rows.Scan(&step, &kind, &path); err != nil {
			return nil, fmt.Errorf("scan screenshot: %w", err)
		}
		shots[fmt.Sprintf("%d/%s", step, kind)] = path
	}
	return shots, rows.Err()
}
