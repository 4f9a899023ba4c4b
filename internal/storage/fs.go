package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// FSStore keeps objects as files under root/bucket/key.
type FSStore struct {
	fs     afero.Fs
	root   string
	logger *zap.Logger
}

// NewFSStore creates a store on fs. Tests pass afero.NewMemMapFs().
func NewFSStore(fs afero.Fs, root string, logger *zap.Logger) *FSStore {
	return &FSStore{fs: fs, root: root, logger: logger}
}

func (s *FSStore) path(bucket, key string) string {
	return filepath.Join(s.root, bucket, filepath.FromSlash(path.Clean("/"+key)))
}

// Get reads an object.
func (s *FSStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, s.path(bucket, key))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s/%s: %w", bucket, key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Put writes an object, creating parent directories.
func (s *FSStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := s.path(bucket, key)
	if err := s.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s/%s: %w", bucket, key, err)
	}
	if err := afero.WriteFile(s.fs, p, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", bucket, key, err)
	}
	s.logger.Debug("Object written",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int("bytes", len(data)),
		zap.String("content_type", contentType))
	return nil
}
