package reports

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"bleep/internal/config"
	"bleep/internal/pipeline"
)

// Run is one recorded pipeline run.
type Run struct {
	ID         int64
	Started    time.Time
	Finished   time.Time
	Discovered int
	Skipped    int
	Completed  int
	Failed     int
	Stopped    bool
	Failures   []pipeline.ItemFailure
}

// Ledger persists run outcomes to a local SQLite database so past runs can
// be reviewed after the process exits.
type Ledger struct {
	db   *sql.DB
	path string
}

// Open connects to the history database under the log directory and
// applies the schema.
func Open(cfg *config.Config) (*Ledger, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.LogDir, "history.db"))
}

// OpenPath connects to the history database at an explicit path.
func OpenPath(dbPath string) (*Ledger, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	ledger := &Ledger{db: db, path: dbPath}
	if err := ledger.applySchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return ledger, nil
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Path returns the database file location.
func (l *Ledger) Path() string {
	return l.path
}

func (l *Ledger) applySchema(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS runs (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            started_at TEXT NOT NULL,
            finished_at TEXT NOT NULL,
            discovered INTEGER NOT NULL,
            skipped INTEGER NOT NULL,
            completed INTEGER NOT NULL,
            failed INTEGER NOT NULL,
            stopped INTEGER NOT NULL DEFAULT 0,
            failures_json TEXT NOT NULL DEFAULT '[]'
        )`)
	if err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// RecordRun appends one run outcome.
func (l *Ledger) RecordRun(ctx context.Context, summary *pipeline.Summary) error {
	failures := summary.Failures
	if failures == nil {
		failures = []pipeline.ItemFailure{}
	}
	failuresJSON, err := json.Marshal(failures)
	if err != nil {
		return fmt.Errorf("encode failures: %w", err)
	}

	stopped := 0
	if summary.Stopped {
		stopped = 1
	}
	_, err = l.db.ExecContext(ctx, `
        INSERT INTO runs (
            started_at, finished_at, discovered, skipped,
            completed, failed, stopped, failures_json
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.Started.Format(time.RFC3339Nano),
		summary.Finished.Format(time.RFC3339Nano),
		summary.Discovered,
		summary.Skipped,
		summary.Completed,
		summary.Failed,
		stopped,
		string(failuresJSON),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (l *Ledger) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
        SELECT id, started_at, finished_at, discovered, skipped,
               completed, failed, stopped, failures_json
        FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var started, finished, failuresJSON string
		var stopped int
		if err := rows.Scan(&run.ID, &started, &finished, &run.Discovered, &run.Skipped,
			&run.Completed, &run.Failed, &stopped, &failuresJSON); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Started, _ = time.Parse(time.RFC3339Nano, started)
		run.Finished, _ = time.Parse(time.RFC3339Nano, finished)
		run.Stopped = stopped != 0
		if err := json.Unmarshal([]byte(failuresJSON), &run.Failures); err != nil {
			return nil, fmt.Errorf("decode failures for run %d: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
