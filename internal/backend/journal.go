package backend

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // register sqlite driver
)

const (
	pragmaJournalModeWAL = `PRAGMA journal_mode = WAL;`
	pragmaForeignKeysOn  = `PRAGMA foreign_keys = ON;`

	executionTableSchema = `CREATE TABLE IF NOT EXISTS executions (
		id TEXT PRIMARY KEY,
		task TEXT NOT NULL,
		attempt INTEGER NOT NULL DEFAULT 1,
		exit_code INTEGER NOT NULL,
		work_dir TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);`

	insertExecutionSQL = `INSERT INTO executions (
		id, task, attempt, exit_code, work_dir, started_at, finished_at
	) VALUES (?, ?, ?, ?, ?, ?, ?);`

	listExecutionsSQL = `SELECT id, task, attempt, exit_code, work_dir, started_at, finished_at
		FROM executions
		WHERE task = ?
		ORDER BY started_at ASC;`
)

// Execution is one recorded task attempt.
type Execution struct {
	ID         string
	Task       string
	Attempt    int
	ExitCode   int
	WorkDir    string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Journal persists task execution history in sqlite. It exists for
// post-run inspection; evaluation never reads it.
type Journal struct {
	db *sql.DB
}

// OpenJournal opens (creating if needed) the journal database at path.
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	j := &Journal{db: db}
	if err := j.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) ensureSchema(ctx context.Context) error {
	for _, stmt := range []string{pragmaJournalModeWAL, pragmaForeignKeysOn, executionTableSchema} {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure journal schema: %w", err)
		}
	}
	return nil
}

// Record inserts one execution row.
func (j *Journal) Record(ctx context.Context, e Execution) error {
	_, err := j.db.ExecContext(ctx, insertExecutionSQL,
		e.ID, e.Task, e.Attempt, e.ExitCode, e.WorkDir, e.StartedAt.UTC(), e.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("record execution %s: %w", e.ID, err)
	}
	return nil
}

// Executions returns the recorded attempts for a task, oldest first.
func (j *Journal) Executions(ctx context.Context, task string) ([]Execution, error) {
	rows, err := j.db.QueryContext(ctx, listExecutionsSQL, task)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var out []Execution
	for rows.Next() {
		var e Execution
		if err := rows.Scan(&e.ID, &e.Task, &e.Attempt, &e.ExitCode, &e.WorkDir, &e.StartedAt, &e.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (j *Journal) Close() error { return j.db.Close() }
