// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package audit keeps a local log of finalized triage results so a field
// worker's device can show what was recommended and under which rule
// versions. Entries are append-only.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/field-triage/pkg/types"
)

const defaultRecent = 20

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one recorded run.
type Entry struct {
	ID                 string
	CreatedAt          time.Time
	Priority           types.Priority
	Environment        types.EnvironmentType
	GuardrailTriggered bool
	Escalate           bool
	Result             types.TriageResult
}

// Log is the SQLite-backed audit log.
type Log struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the audit database at path.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}
	l := &Log{db: db, now: time.Now}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return l, nil
}

// Close releases the database connection.
func (l *Log) Close() error {
	return l.db.Close()
}

func (l *Log) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS triage_runs (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			priority TEXT NOT NULL,
			environment TEXT NOT NULL,
			guardrail_triggered INTEGER NOT NULL,
			escalate INTEGER NOT NULL,
			result_json TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_triage_runs_created ON triage_runs(created_at)`,
	}
	for _, stmt := range statements {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record stores result under a fresh run id and returns the id.
func (l *Log) Record(ctx context.Context, result types.TriageResult) (string, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encoding result: %w", err)
	}
	id := uuid.NewString()
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO triage_runs (id, created_at, priority, environment, guardrail_triggered, escalate, result_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id,
		l.now().UTC().Format(timeLayout),
		result.Priority.String(),
		string(result.Recommendation.Environment),
		result.Guardrail.Triggered,
		result.Escalate,
		string(data),
	)
	if err != nil {
		return "", fmt.Errorf("recording triage run: %w", err)
	}
	return id, nil
}

// Recent returns up to n entries, newest first. n <= 0 uses a default of 20.
func (l *Log) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = defaultRecent
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, created_at, priority, environment, guardrail_triggered, escalate, result_json
		 FROM triage_runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("querying triage runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                   Entry
			created, pri, env   string
			triggered, escalate bool
			resultJSON          string
		)
		if err := rows.Scan(&e.ID, &created, &pri, &env, &triggered, &escalate, &resultJSON); err != nil {
			return nil, fmt.Errorf("scanning triage run: %w", err)
		}
		if e.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("parsing timestamp of run %s: %w", e.ID, err)
		}
		if e.Priority, err = types.ParsePriority(pri); err != nil {
			return nil, fmt.Errorf("run %s: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(resultJSON), &e.Result); err != nil {
			return nil, fmt.Errorf("decoding result of run %s: %w", e.ID, err)
		}
		e.Environment = types.EnvironmentType(env)
		e.GuardrailTriggered = triggered
		e.Escalate = escalate
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
