// Package history persists dispatched interventions in a local SQLite
// database so past decisions survive restarts and can be inspected from
// the status command.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver.

	"github.com/avoncourt/steward/pkg/steward/supervisor"
)

// schema is the DDL executed on every startup (idempotent via IF NOT EXISTS).
const schema = `
CREATE TABLE IF NOT EXISTS interventions (
    id          TEXT PRIMARY KEY,
    created_at  TEXT NOT NULL,
    reason      TEXT DEFAULT '',
    kind        TEXT NOT NULL,
    instruction TEXT NOT NULL,
    forced      INTEGER DEFAULT 0,
    ok          INTEGER DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_interventions_created ON interventions(created_at);
`

// Config controls where the history database lives. Retention is the
// janitor's concern.
type Config struct {
	Path string `yaml:"path"`
}

// DefaultConfig returns history settings with sane defaults.
func DefaultConfig() Config {
	return Config{Path: "./data/steward.db"}
}

// Store records interventions in a SQLite database. It implements
// supervisor.Recorder.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the intervention database at the given path.
// It enables WAL mode for concurrent read performance and creates the
// schema on every startup.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		path = "./data/steward.db"
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Ensure parent directory exists.
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory %q: %w", dir, err)
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, logger: logger.With("component", "history")}, nil
}

// Record inserts one intervention row.
func (s *Store) Record(ctx context.Context, rec supervisor.Intervention) error {
	forced, ok := 0, 0
	if rec.Forced {
		forced = 1
	}
	if rec.OK {
		ok = 1
	}

	// Truncate oversized instructions for storage efficiency.
	instruction := rec.Instruction
	if len(instruction) > 2000 {
		instruction = instruction[:2000] + "...[truncated]"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interventions (id, created_at, reason, kind, instruction, forced, ok)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Time.UTC().Format(time.RFC3339), rec.Reason, rec.Kind, instruction, forced, ok,
	)
	if err != nil {
		return fmt.Errorf("record intervention: %w", err)
	}
	return nil
}

// Recent returns the last n interventions, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]supervisor.Intervention, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, reason, kind, instruction, forced, ok
		FROM interventions
		ORDER BY created_at DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query interventions: %w", err)
	}
	defer rows.Close()

	var out []supervisor.Intervention
	for rows.Next() {
		var (
			rec        supervisor.Intervention
			createdAt  string
			forced, ok int
		)
		if err := rows.Scan(&rec.ID, &createdAt, &rec.Reason, &rec.Kind, &rec.Instruction, &forced, &ok); err != nil {
			return nil, fmt.Errorf("scan intervention: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			rec.Time = t
		}
		rec.Forced = forced != 0
		rec.OK = ok != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Count returns the total number of stored interventions.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM interventions").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count interventions: %w", err)
	}
	return count, nil
}

// PruneOlderThan deletes interventions recorded before the cutoff and
// returns the number of rows removed.
func (s *Store) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM interventions WHERE created_at < ?",
		cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("prune interventions: %w", err)
	}
	n, _ := result.RowsAffected()
	if n > 0 {
		s.logger.Info("intervention history pruned", "removed", n)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
