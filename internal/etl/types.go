package etl

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/raaihank/yt-etl/internal/clean"
	"github.com/raaihank/yt-etl/internal/decode"
	"github.com/raaihank/yt-etl/internal/partition"
	"github.com/raaihank/yt-etl/internal/schema"
)

// Config contains pipeline configuration.
type Config struct {
	Bucket          string       `yaml:"bucket" mapstructure:"bucket"`                     // reference documents and output
	RawPrefix       string       `yaml:"raw_prefix" mapstructure:"raw_prefix"`             // raw/
	ProcessedPrefix string       `yaml:"processed_prefix" mapstructure:"processed_prefix"` // processed/
	Encodings       []string     `yaml:"encodings" mapstructure:"encodings"`
	Clean           clean.Config `yaml:"clean" mapstructure:"clean"`
}

// FileRef addresses one source object.
type FileRef struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

func (r FileRef) String() string {
	return "s3://" + r.Bucket + "/" + r.Key
}

// ParseFileRef parses s3://bucket/key.
func ParseFileRef(s string) (FileRef, error) {
	rest, ok := strings.CutPrefix(s, "s3://")
	if !ok {
		return FileRef{}, fmt.Errorf("invalid object reference %q: expected s3://bucket/key", s)
	}
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return FileRef{}, fmt.Errorf("invalid object reference %q: expected s3://bucket/key", s)
	}
	return FileRef{Bucket: bucket, Key: key}, nil
}

// RawBuffer is a fetched source file.
type RawBuffer struct {
	Ref     FileRef
	Country string
	Data    []byte
}

// IsCSV reports whether the key names a CSV file.
func IsCSV(key string) bool {
	return strings.HasSuffix(strings.ToLower(key), ".csv")
}

// CountryOf returns the upper-cased first two characters of the filename.
func CountryOf(key string) string {
	name := []rune(path.Base(key))
	if len(name) > 2 {
		name = name[:2]
	}
	return strings.ToUpper(string(name))
}

// Status is the outcome of one file.
type Status string

const (
	StatusWritten Status = "written"
	StatusSkipped Status = "skipped" // not a CSV file
	StatusEmpty   Status = "empty"   // nothing left after cleaning
	StatusFailed  Status = "failed"
)

// StatusSuccess is the overall status of every run.
const StatusSuccess = "success"

// ErrorKind classifies per-file failures.
type ErrorKind string

const (
	KindRetrieval       ErrorKind = "retrieval_error"
	KindDecodeExhausted ErrorKind = "decode_exhausted"
	KindSchemaConflict  ErrorKind = "schema_conflict"
	KindWriteFailure    ErrorKind = "write_failure"
	KindInternal        ErrorKind = "internal"
)

var (
	// ErrRetrieval marks a failed source fetch.
	ErrRetrieval = errors.New("retrieval error")

	ErrDecodeExhausted = decode.ErrDecodeExhausted
	ErrSchemaConflict  = schema.ErrSchemaConflict
	ErrWriteFailure    = partition.ErrWriteFailure
)

// Classify maps an error to its kind.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrRetrieval):
		return KindRetrieval
	case errors.Is(err, ErrDecodeExhausted):
		return KindDecodeExhausted
	case errors.Is(err, ErrSchemaConflict):
		return KindSchemaConflict
	case errors.Is(err, ErrWriteFailure):
		return KindWriteFailure
	default:
		return KindInternal
	}
}

// PipelineError is a classified per-file failure.
type PipelineError struct {
	Kind ErrorKind
	Ref  FileRef
	Err  error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Ref, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// FileResult is the outcome of processing one file.
type FileResult struct {
	RunID             string        `json:"run_id"`
	Bucket            string        `json:"bucket"`
	Key               string        `json:"key"`
	Country           string        `json:"country,omitempty"`
	Status            Status        `json:"status"`
	Encoding          string        `json:"encoding,omitempty"`
	Lossy             bool          `json:"lossy,omitempty"`
	RowsIn            int           `json:"rows_in"`
	RowsOut           int           `json:"rows_out"`
	Duplicates        int           `json:"duplicates"`
	Dropped           int           `json:"dropped"`
	CategoriesMatched int           `json:"categories_matched"`
	Partition         string        `json:"partition,omitempty"`
	OutputKey         string        `json:"output_key,omitempty"`
	ErrorKind         ErrorKind     `json:"error_kind,omitempty"`
	Error             string        `json:"error,omitempty"`
	ProcessedAt       time.Time     `json:"processed_at"`
	Duration          time.Duration `json:"duration"`
}

// Ref returns the source reference of the result.
func (r *FileResult) Ref() FileRef {
	return FileRef{Bucket: r.Bucket, Key: r.Key}
}

// RunResult is the outcome of one invocation. Status is always
// StatusSuccess; per-file failures are reported in Files.
type RunResult struct {
	RunID    string        `json:"run_id"`
	Status   string        `json:"status"`
	Files    []*FileResult `json:"files"`
	Duration time.Duration `json:"duration"`
}

// Count returns the number of files with the given status.
func (r *RunResult) Count(status Status) int {
	n := 0
	for _, f := range r.Files {
		if f.Status == status {
			n++
		}
	}
	return n
}

// ResultSink receives every file result as soon as it is known.
type ResultSink interface {
	Publish(ctx context.Context, result *FileResult) error
}
