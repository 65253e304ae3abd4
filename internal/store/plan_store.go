// Package store persists search runs and their validated plans in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"situatedbeam/internal/idea"
	"situatedbeam/internal/logging"
	"situatedbeam/internal/validator"
)

// Run is one search-and-validate invocation.
type Run struct {
	ID          string
	Action      string
	InitialNode float64
	Occupied    []float64
	Context     []int
	Rounds      int
	FellBack    bool
	Candidates  int
	Duration    time.Duration
	// Failures is the joined text of per-item expansion errors, if any.
	Failures  string
	CreatedAt time.Time
}

// PlanStore is a SQLite-backed store of runs and plans.
type PlanStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// Open initializes the database at path, creating parent directories.
func Open(path string) (*PlanStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &PlanStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.Store("opened plan store at %s", path)
	return s, nil
}

func (s *PlanStore) initialize() error {
	runsTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		initial_node REAL NOT NULL,
		occupied_json TEXT NOT NULL,
		context_json TEXT NOT NULL,
		rounds INTEGER NOT NULL,
		fell_back INTEGER NOT NULL,
		candidates INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	plansTable := `
	CREATE TABLE IF NOT EXISTS plans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		rank INTEGER NOT NULL,
		score REAL NOT NULL,
		length INTEGER NOT NULL,
		tokens_json TEXT NOT NULL,
		steps_json TEXT NOT NULL,
		UNIQUE(run_id, rank)
	);
	CREATE INDEX IF NOT EXISTS idx_plans_run ON plans(run_id);
	`

	for _, table := range []string{runsTable, plansTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return runMigrations(s.db)
}

// Close closes the database connection.
func (s *PlanStore) Close() error {
	return s.db.Close()
}

// SaveRun stores a run and its plans in one transaction. Plans are ranked in
// the order given.
func (s *PlanStore) SaveRun(ctx context.Context, run Run, plans []validator.Plan) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	timer := logging.StartTimer(logging.CategoryStore, "SaveRun")
	defer timer.Stop()

	occupied, err := json.Marshal(nonNil(run.Occupied))
	if err != nil {
		return fmt.Errorf("failed to marshal occupied nodes: %w", err)
	}
	prompt, err := json.Marshal(nonNil(run.Context))
	if err != nil {
		return fmt.Errorf("failed to marshal context: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, action, initial_node, occupied_json, context_json, rounds, fell_back, candidates, duration_ms, failures)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Action, run.InitialNode, string(occupied), string(prompt), run.Rounds, run.FellBack, run.Candidates,
		run.Duration.Milliseconds(), run.Failures)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	for rank, p := range plans {
		tokens, err := json.Marshal(p.Tokens)
		if err != nil {
			return fmt.Errorf("failed to marshal tokens: %w", err)
		}
		steps, err := json.Marshal(p.Steps)
		if err != nil {
			return fmt.Errorf("failed to marshal steps: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO plans (run_id, rank, score, length, tokens_json, steps_json) VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, rank, p.Score, p.Length, string(tokens), string(steps))
		if err != nil {
			return fmt.Errorf("failed to insert plan %d: %w", rank, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}
	logging.StoreDebug("saved run %s with %d plans", run.ID, len(plans))
	return nil
}

// ListRuns returns the most recent runs first, at most limit of them.
func (s *PlanStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action, initial_node, occupied_json, context_json, rounds, fell_back, candidates, duration_ms, failures, created_at
		 FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var occupied, prompt string
		var durationMS int64
		if err := rows.Scan(&r.ID, &r.Action, &r.InitialNode, &occupied, &prompt, &r.Rounds, &r.FellBack, &r.Candidates,
			&durationMS, &r.Failures, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		if err := json.Unmarshal([]byte(occupied), &r.Occupied); err != nil {
			return nil, fmt.Errorf("run %s occupied nodes: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(prompt), &r.Context); err != nil {
			return nil, fmt.Errorf("run %s context: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListPlans returns a run's plans in rank order.
func (s *PlanStore) ListPlans(ctx context.Context, runID string) ([]validator.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT score, length, tokens_json, steps_json FROM plans WHERE run_id = ? ORDER BY rank`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []validator.Plan
	for rows.Next() {
		var p validator.Plan
		var tokens, steps string
		if err := rows.Scan(&p.Score, &p.Length, &tokens, &steps); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		if err := json.Unmarshal([]byte(tokens), &p.Tokens); err != nil {
			return nil, fmt.Errorf("plan tokens: %w", err)
		}
		var decoded []idea.ActionStep
		if err := json.Unmarshal([]byte(steps), &decoded); err != nil {
			return nil, fmt.Errorf("plan steps: %w", err)
		}
		p.Steps = decoded
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
