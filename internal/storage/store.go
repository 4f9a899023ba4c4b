// Package storage reads and writes whole objects addressed by bucket and
// key, backed by MinIO/S3 or a local directory tree.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ErrNotFound is returned by Get when the object does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectStore is the blob interface the pipeline reads sources and reference
// documents from and appends output files to.
type ObjectStore interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
}

// Config selects and configures a backend.
type Config struct {
	Backend string      `yaml:"backend" mapstructure:"backend"` // minio or local
	Minio   MinioConfig `yaml:"minio" mapstructure:"minio"`
	Local   LocalConfig `yaml:"local" mapstructure:"local"`
}

// LocalConfig roots the local backend. Buckets are subdirectories of Root.
type LocalConfig struct {
	Root string `yaml:"root" mapstructure:"root"`
}

// Open builds the configured backend.
func Open(config Config, logger *zap.Logger) (ObjectStore, error) {
	switch config.Backend {
	case "minio", "s3":
		return NewMinioStore(config.Minio, logger)
	case "local", "":
		return NewFSStore(afero.NewOsFs(), config.Local.Root, logger), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", config.Backend)
	}
}
