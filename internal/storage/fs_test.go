package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFSStore(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	store := NewFSStore(fs, "/data", zap.NewNop())

	t.Run("PutGet", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "bucket", "raw/US_videos.csv", []byte("a,b\n"), "text/csv"))
		data, err := store.Get(ctx, "bucket", "raw/US_videos.csv")
		require.NoError(t, err)
		assert.Equal(t, "a,b\n", string(data))

		exists, err := afero.Exists(fs, "/data/bucket/raw/US_videos.csv")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := store.Get(ctx, "bucket", "raw/missing.json")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("KeysCannotEscapeBucket", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "bucket", "../../etc/x", []byte("x"), ""))
		exists, _ := afero.Exists(fs, "/data/bucket/etc/x")
		assert.True(t, exists)
	})

	t.Run("Cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := store.Get(cctx, "bucket", "raw/US_videos.csv")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestOpen(t *testing.T) {
	_, err := Open(Config{Backend: "ftp"}, zap.NewNop())
	assert.Error(t, err)

	s, err := Open(Config{Backend: "local", Local: LocalConfig{Root: t.TempDir()}}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &FSStore{}, s)
}
