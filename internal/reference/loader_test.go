package reference

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raaihank/yt-etl/internal/metrics"
	"github.com/raaihank/yt-etl/internal/storage"
)

const usDoc = `{"kind":"youtube#videoCategoryListResponse","items":[
 {"id":"10","snippet":{"title":"Music"}},
 {"id":24,"snippet":{"title":"Entertainment"}},
 {"id":"1"},
 {"snippet":{"title":"Orphan"}},
 {"id":"2","snippet":{}}
]}`

type countingStore struct {
	storage.ObjectStore
	gets int
}

func (s *countingStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	s.gets++
	return s.ObjectStore.Get(ctx, bucket, key)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string, string) ([]byte, error) {
	return nil, errors.New("connection reset")
}

func (failingStore) Put(context.Context, string, string, []byte, string) error {
	return errors.New("connection reset")
}

type memCache struct {
	data map[string]map[string]string
	sets int
}

func (c *memCache) Get(_ context.Context, country string) (map[string]string, bool) {
	m, ok := c.data[country]
	return m, ok
}

func (c *memCache) Set(_ context.Context, country string, categories map[string]string) error {
	c.sets++
	c.data[country] = categories
	return nil
}

func newStore(t *testing.T) *countingStore {
	t.Helper()
	fs := storage.NewFSStore(afero.NewMemMapFs(), "/data", zap.NewNop())
	require.NoError(t, fs.Put(context.Background(), "yt", "raw/US_category_id.json", []byte(usDoc), "application/json"))
	require.NoError(t, fs.Put(context.Background(), "yt", "raw/DE_category_id.json", []byte("{not json"), "application/json"))
	return &countingStore{ObjectStore: fs}
}

func TestParse(t *testing.T) {
	m, skipped, err := Parse([]byte(usDoc))
	require.NoError(t, err)
	assert.Equal(t, Map{"10": "Music", "24": "Entertainment"}, m)
	assert.Equal(t, 3, skipped)

	t.Run("NoItems", func(t *testing.T) {
		m, _, err := Parse([]byte(`{}`))
		require.NoError(t, err)
		assert.Empty(t, m)
	})

	t.Run("Malformed", func(t *testing.T) {
		_, _, err := Parse([]byte(`[`))
		assert.Error(t, err)
	})
}

func TestLoader(t *testing.T) {
	ctx := context.Background()

	t.Run("Key", func(t *testing.T) {
		l := NewLoader(nil, "yt", "raw/", nil, metrics.New(prometheus.NewRegistry()), zap.NewNop())
		assert.Equal(t, "raw/KR_category_id.json", l.Key("kr"))
	})

	t.Run("Found", func(t *testing.T) {
		l := NewLoader(newStore(t), "yt", "raw/", nil, metrics.New(prometheus.NewRegistry()), zap.NewNop())
		m := l.Load(ctx, "us")
		assert.Equal(t, "Music", m["10"])
	})

	t.Run("MissingIsEmpty", func(t *testing.T) {
		l := NewLoader(newStore(t), "yt", "raw/", nil, metrics.New(prometheus.NewRegistry()), zap.NewNop())
		assert.Empty(t, l.Load(ctx, "KR"))
	})

	t.Run("MalformedIsEmpty", func(t *testing.T) {
		l := NewLoader(newStore(t), "yt", "raw/", nil, metrics.New(prometheus.NewRegistry()), zap.NewNop())
		assert.Empty(t, l.Load(ctx, "DE"))
	})

	t.Run("StoreErrorIsEmpty", func(t *testing.T) {
		l := NewLoader(failingStore{}, "yt", "raw/", nil, metrics.New(prometheus.NewRegistry()), zap.NewNop())
		assert.Empty(t, l.Load(ctx, "US"))
	})

	t.Run("CacheHitSkipsStore", func(t *testing.T) {
		store := newStore(t)
		c := &memCache{data: map[string]map[string]string{"US": {"10": "Cached"}}}
		l := NewLoader(store, "yt", "raw/", c, metrics.New(prometheus.NewRegistry()), zap.NewNop())

		assert.Equal(t, "Cached", l.Load(ctx, "US")["10"])
		assert.Equal(t, 0, store.gets)
	})

	t.Run("CacheFilledOnlyWhenNonEmpty", func(t *testing.T) {
		c := &memCache{data: map[string]map[string]string{}}
		l := NewLoader(newStore(t), "yt", "raw/", c, metrics.New(prometheus.NewRegistry()), zap.NewNop())

		l.Load(ctx, "US")
		l.Load(ctx, "KR")
		assert.Equal(t, 1, c.sets)
		assert.Contains(t, c.data, "US")
	})
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	m := metrics.New(prometheus.NewRegistry())
	l := NewLoader(store, "yt", "raw/", nil, m, zap.NewNop())

	run := l.NewRun()
	for i := 0; i < 3; i++ {
		assert.Equal(t, "Music", run.Load(ctx, "US")["10"])
	}
	run.Load(ctx, "KR")
	run.Load(ctx, "kr")

	assert.Equal(t, 2, store.gets)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ReferenceLoads.WithLabelValues("run")))

	// A new run fetches again.
	l.NewRun().Load(ctx, "US")
	assert.Equal(t, 3, store.gets)
}
