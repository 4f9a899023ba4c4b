package partition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raaihank/yt-etl/internal/storage"
	"github.com/raaihank/yt-etl/internal/table"
)

// ErrWriteFailure marks any failure to append output.
var ErrWriteFailure = errors.New("write failure")

// WriteError reports a failed append to one partition.
type WriteError struct {
	Key Key
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write partition %s: %v", e.Key, e.Err)
}

// Is matches ErrWriteFailure.
func (e *WriteError) Is(target error) bool { return target == ErrWriteFailure }

func (e *WriteError) Unwrap() error { return e.Err }

const contentType = "application/vnd.apache.parquet"

// Writer appends tables as new parquet objects. It never reads, merges or
// overwrites existing objects.
type Writer struct {
	store           storage.ObjectStore
	bucket          string
	processedPrefix string
	newID           func() string
	logger          *zap.Logger
}

// NewWriter creates a writer for the dataset rooted at processedPrefix in
// bucket.
func NewWriter(store storage.ObjectStore, bucket, processedPrefix string, logger *zap.Logger) *Writer {
	return &Writer{
		store:           store,
		bucket:          bucket,
		processedPrefix: processedPrefix,
		newID:           uuid.NewString,
		logger:          logger,
	}
}

// Write encodes t and stores it under key's partition. It returns the key
// of the new object and the number of bytes written.
func (w *Writer) Write(ctx context.Context, t *table.Table, key Key) (string, int, error) {
	if t.NumRows() == 0 {
		return "", 0, &WriteError{Key: key, Err: errors.New("refusing to write an empty table")}
	}

	start := time.Now()
	data, err := Encode(t)
	if err != nil {
		return "", 0, &WriteError{Key: key, Err: err}
	}

	objectKey := key.Prefix(w.processedPrefix) + "part-" + w.newID() + ".snappy.parquet"
	if err := w.store.Put(ctx, w.bucket, objectKey, data, contentType); err != nil {
		return "", 0, &WriteError{Key: key, Err: err}
	}

	w.logger.Info("Partition file written",
		zap.String("bucket", w.bucket),
		zap.String("key", objectKey),
		zap.Int("rows", t.NumRows()),
		zap.Int("bytes", len(data)),
		zap.Duration("duration", time.Since(start)))
	return objectKey, len(data), nil
}
