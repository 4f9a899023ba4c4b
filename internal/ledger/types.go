package ledger

import (
	"time"

	"github.com/raaihank/yt-etl/internal/etl"
)

// Config contains database configuration
type Config struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// Entry is one ledger row
type Entry struct {
	ID                int64     `db:"id" json:"id"`
	RunID             string    `db:"run_id" json:"run_id"`
	Bucket            string    `db:"bucket" json:"bucket"`
	ObjectKey         string    `db:"object_key" json:"object_key"`
	Country           string    `db:"country" json:"country"`
	Status            string    `db:"status" json:"status"`
	Encoding          string    `db:"encoding" json:"encoding"`
	Lossy             bool      `db:"lossy" json:"lossy"`
	RowsIn            int       `db:"rows_in" json:"rows_in"`
	RowsOut           int       `db:"rows_out" json:"rows_out"`
	Duplicates        int       `db:"duplicates" json:"duplicates"`
	Dropped           int       `db:"dropped" json:"dropped"`
	CategoriesMatched int       `db:"categories_matched" json:"categories_matched"`
	OutputKey         string    `db:"output_key" json:"output_key"`
	ErrorKind         string    `db:"error_kind" json:"error_kind"`
	ErrorMessage      string    `db:"error_message" json:"error_message"`
	DurationMS        int64     `db:"duration_ms" json:"duration_ms"`
	ProcessedAt       time.Time `db:"processed_at" json:"processed_at"`
}

// EntryFromResult flattens a file result into a ledger row
func EntryFromResult(r *etl.FileResult) *Entry {
	return &Entry{
		RunID:             r.RunID,
		Bucket:            r.Bucket,
		ObjectKey:         r.Key,
		Country:           r.Country,
		Status:            string(r.Status),
		Encoding:          r.Encoding,
		Lossy:             r.Lossy,
		RowsIn:            r.RowsIn,
		RowsOut:           r.RowsOut,
		Duplicates:        r.Duplicates,
		Dropped:           r.Dropped,
		CategoriesMatched: r.CategoriesMatched,
		OutputKey:         r.OutputKey,
		ErrorKind:         string(r.ErrorKind),
		ErrorMessage:      r.Error,
		DurationMS:        r.Duration.Milliseconds(),
		ProcessedAt:       r.ProcessedAt,
	}
}

// Stats summarizes the ledger
type Stats struct {
	TotalFiles  int64            `json:"total_files"`
	ByStatus    map[string]int64 `json:"by_status"`
	RowsWritten int64            `json:"rows_written"`
}
