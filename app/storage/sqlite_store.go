package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the sqlite journal of reconciliation passes. It is an audit trail
// only; nothing reads it back to compute a diff.
type Store struct {
	db *sql.DB
}

// NewStore creates a new SQLite store
func NewStore(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{db: db}

	if err := store.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) runMigrations() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS reconcile_passes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL,
			host_uuid TEXT NOT NULL DEFAULT '',
			trigger TEXT NOT NULL,
			aborted INTEGER NOT NULL DEFAULT 0,
			registered INTEGER NOT NULL DEFAULT 0,
			deleted INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			error_msg TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_passes_started ON reconcile_passes(started_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// PassRecord is one journal row
type PassRecord struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	HostUUID   string
	Trigger    string
	Aborted    bool
	Registered int
	Deleted    int
	Skipped    int
	Failed     int
	ErrorMsg   *string
}

// RecordPass appends a pass outcome
func (s *Store) RecordPass(ctx context.Context, rec PassRecord) error {
	query := `
		INSERT INTO reconcile_passes
			(started_at, finished_at, host_uuid, trigger, aborted, registered, deleted, skipped, failed, error_msg)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.StartedAt.UTC(), rec.FinishedAt.UTC(), rec.HostUUID, rec.Trigger, rec.Aborted,
		rec.Registered, rec.Deleted, rec.Skipped, rec.Failed, rec.ErrorMsg,
	)
	if err != nil {
		return fmt.Errorf("failed to record pass: %w", err)
	}
	return nil
}

// LastPass returns the most recent pass, or nil if the journal is empty
func (s *Store) LastPass(ctx context.Context) (*PassRecord, error) {
	query := `
		SELECT id, started_at, finished_at, host_uuid, trigger, aborted, registered, deleted, skipped, failed, error_msg
		FROM reconcile_passes
		ORDER BY id DESC
		LIMIT 1
	`

	var rec PassRecord
	err := s.db.QueryRowContext(ctx, query).Scan(
		&rec.ID, &rec.StartedAt, &rec.FinishedAt, &rec.HostUUID, &rec.Trigger, &rec.Aborted,
		&rec.Registered, &rec.Deleted, &rec.Skipped, &rec.Failed, &rec.ErrorMsg,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CountPasses returns the number of journal rows
func (s *Store) CountPasses(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reconcile_passes`).Scan(&n)
	return n, err
}

// CleanupPasses deletes passes that started before the cutoff
func (s *Store) CleanupPasses(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reconcile_passes WHERE started_at < ?`, before.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
