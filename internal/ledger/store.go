// Package ledger records per-file pipeline outcomes in PostgreSQL.
package ledger

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/raaihank/yt-etl/internal/etl"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS etl_file_results (
	id                 BIGSERIAL PRIMARY KEY,
	run_id             TEXT NOT NULL,
	bucket             TEXT NOT NULL,
	object_key         TEXT NOT NULL,
	country            TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL,
	encoding           TEXT NOT NULL DEFAULT '',
	lossy              BOOLEAN NOT NULL DEFAULT FALSE,
	rows_in            INTEGER NOT NULL DEFAULT 0,
	rows_out           INTEGER NOT NULL DEFAULT 0,
	duplicates         INTEGER NOT NULL DEFAULT 0,
	dropped            INTEGER NOT NULL DEFAULT 0,
	categories_matched INTEGER NOT NULL DEFAULT 0,
	output_key         TEXT NOT NULL DEFAULT '',
	error_kind         TEXT NOT NULL DEFAULT '',
	error_message      TEXT NOT NULL DEFAULT '',
	duration_ms        BIGINT NOT NULL DEFAULT 0,
	processed_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_etl_file_results_run ON etl_file_results (run_id);
CREATE INDEX IF NOT EXISTS idx_etl_file_results_processed ON etl_file_results (processed_at DESC);`

const insertSQL = `
	INSERT INTO etl_file_results (
		run_id, bucket, object_key, country, status, encoding, lossy,
		rows_in, rows_out, duplicates, dropped, categories_matched,
		output_key, error_kind, error_message, duration_ms, processed_at
	) VALUES (
		:run_id, :bucket, :object_key, :country, :status, :encoding, :lossy,
		:rows_in, :rows_out, :duplicates, :dropped, :categories_matched,
		:output_key, :error_kind, :error_message, :duration_ms, :processed_at
	)`

// Store handles ledger operations
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewStore connects to PostgreSQL and ensures the ledger table exists
func NewStore(config *Config, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	store := &Store{db: db, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create ledger schema: %w", err)
	}

	logger.Info("Ledger initialized",
		zap.String("database_url", maskDatabaseURL(config.DatabaseURL)),
		zap.Int("max_open_conns", config.MaxOpenConns))

	return store, nil
}

// Publish records a file result
func (s *Store) Publish(ctx context.Context, result *etl.FileResult) error {
	entry := EntryFromResult(result)
	if _, err := s.db.NamedExecContext(ctx, insertSQL, entry); err != nil {
		return fmt.Errorf("failed to record file result: %w", err)
	}

	s.logger.Debug("File result recorded",
		zap.String("run_id", entry.RunID),
		zap.String("key", entry.ObjectKey),
		zap.String("status", entry.Status))
	return nil
}

// Recent returns the latest entries, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	var entries []*Entry
	query := `SELECT * FROM etl_file_results ORDER BY processed_at DESC, id DESC LIMIT $1`
	if err := s.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list file results: %w", err)
	}
	return entries, nil
}

// Run returns the entries of one run in processing order
func (s *Store) Run(ctx context.Context, runID string) ([]*Entry, error) {
	var entries []*Entry
	query := `SELECT * FROM etl_file_results WHERE run_id = $1 ORDER BY id`
	if err := s.db.SelectContext(ctx, &entries, query, runID); err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	return entries, nil
}

// GetStats returns ledger statistics
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	var rows []struct {
		Status string `db:"status"`
		Files  int64  `db:"files"`
		Rows   int64  `db:"rows"`
	}
	query := `
		SELECT status, COUNT(*) AS files, COALESCE(SUM(rows_out), 0) AS rows
		FROM etl_file_results
		GROUP BY status`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to get ledger stats: %w", err)
	}

	stats := &Stats{ByStatus: make(map[string]int64, len(rows))}
	for _, r := range rows {
		stats.TotalFiles += r.Files
		stats.ByStatus[r.Status] = r.Files
		if r.Status == string(etl.StatusWritten) {
			stats.RowsWritten = r.Rows
		}
	}
	return stats, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// maskDatabaseURL hides the password of a database URL for logging
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}
