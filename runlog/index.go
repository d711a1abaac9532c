// Index is a derived SQLite read model over run log entries, answering
// "runs for block X" or "recent failures" without scanning JSON files.
// Rows exist only for RecordExecution calls: AppendExecution does not
// write here, and neither the kernel nor cmd/tac opens an Index.
// Grounded on the teacher's context/store.go (same
// open-db/ping/initSchema-with-raw-SQL-string shape), restructured around
// runs/executions instead of contexts/artifacts.
package runlog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS executions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	block_id TEXT NOT NULL,
	attempt INTEGER NOT NULL,
	success INTEGER NOT NULL,
	message TEXT,
	failure_analysis TEXT,
	recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_executions_block ON executions(block_id);
CREATE INDEX IF NOT EXISTS idx_executions_success ON executions(success);
`

// Index is the optional SQLite-backed derived view over run log entries.
// config.Persist.SQLiteIndex is not read when opening it; callers pass the
// path to OpenIndex.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (creating if needed) the SQLite index at path.
func OpenIndex(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create sqlite index directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite index: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite index: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize sqlite index schema: %w", err)
	}

	return &Index{db: db}, nil
}

// Close closes the underlying database connection.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// RecordExecution mirrors one Execution into the derived index.
func (idx *Index) RecordExecution(blockID string, exec Execution) error {
	success := 0
	if exec.Success {
		success = 1
	}
	_, err := idx.db.Exec(
		`INSERT INTO executions (block_id, attempt, success, message, failure_analysis, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		blockID, exec.Attempt, success, exec.Message, exec.FailureAnalysis, time.Now(),
	)
	return err
}

// ExecutionSummary is one row of a query result.
type ExecutionSummary struct {
	BlockID    string
	Attempt    int
	Success    bool
	Message    string
	RecordedAt time.Time
}

// RecentFailures returns the n most recent failed executions across all
// blocks, newest first.
func (idx *Index) RecentFailures(n int) ([]ExecutionSummary, error) {
	rows, err := idx.db.Query(
		`SELECT block_id, attempt, success, message, recorded_at
		 FROM executions WHERE success = 0
		 ORDER BY recorded_at DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExecutionSummary
	for rows.Next() {
		var s ExecutionSummary
		var success int
		if err := rows.Scan(&s.BlockID, &s.Attempt, &success, &s.Message, &s.RecordedAt); err != nil {
			return nil, err
		}
		s.Success = success == 1
		out = append(out, s)
	}
	return out, rows.Err()
}

// ForBlock returns every recorded execution for blockID, oldest first.
func (idx *Index) ForBlock(blockID string) ([]ExecutionSummary, error) {
	rows, err := idx.db.Query(
		`SELECT block_id, attempt, success, message, recorded_at
		 FROM executions WHERE block_id = ?
		 ORDER BY attempt ASC`, blockID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExecutionSummary
	for rows.Next() {
		var s ExecutionSummary
		var success int
		if err := rows.Scan(&s.BlockID, &s.Attempt, &success, &s.Message, &s.RecordedAt); err != nil {
			return nil, err
		}
		s.Success = success == 1
		out = append(out, s)
	}
	return out, rows.Err()
}
