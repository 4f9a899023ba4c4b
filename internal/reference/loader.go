// Package reference loads the per-country category id to title lookup
// documents that sit next to the raw trending files.
package reference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/raaihank/yt-etl/internal/metrics"
	"github.com/raaihank/yt-etl/internal/storage"
)

// Map maps a stringified category id to its title.
type Map map[string]string

// Cache is a cross-invocation store of reference maps. *cache.ReferenceCache
// satisfies it.
type Cache interface {
	Get(ctx context.Context, country string) (map[string]string, bool)
	Set(ctx context.Context, country string, categories map[string]string) error
}

// Loader fetches reference documents from the object store.
type Loader struct {
	store     storage.ObjectStore
	bucket    string
	rawPrefix string
	cache     Cache
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewLoader creates a loader. cache may be nil.
func NewLoader(store storage.ObjectStore, bucket, rawPrefix string, cache Cache, m *metrics.Metrics, logger *zap.Logger) *Loader {
	return &Loader{
		store:     store,
		bucket:    bucket,
		rawPrefix: rawPrefix,
		cache:     cache,
		metrics:   m,
		logger:    logger,
	}
}

// Key returns the object key of a country's reference document.
func (l *Loader) Key(country string) string {
	return l.rawPrefix + strings.ToUpper(country) + "_category_id.json"
}

// Load returns the category map for country. It never fails: a missing or
// unreadable document yields an empty map.
func (l *Loader) Load(ctx context.Context, country string) Map {
	country = strings.ToUpper(country)

	if l.cache != nil {
		if m, ok := l.cache.Get(ctx, country); ok {
			l.metrics.ReferenceLoads.WithLabelValues("cache").Inc()
			return Map(m)
		}
	}

	key := l.Key(country)
	raw, err := l.store.Get(ctx, l.bucket, key)
	if err != nil {
		l.metrics.ReferenceLoads.WithLabelValues("empty").Inc()
		if errors.Is(err, storage.ErrNotFound) {
			l.logger.Warn("Category mapping not found",
				zap.String("country", country),
				zap.String("key", key))
		} else {
			l.logger.Warn("Failed to fetch category mapping",
				zap.String("country", country),
				zap.String("key", key),
				zap.Error(err))
		}
		return Map{}
	}

	m, skipped, err := Parse(raw)
	if err != nil {
		l.metrics.ReferenceLoads.WithLabelValues("empty").Inc()
		l.logger.Warn("Failed to parse category mapping",
			zap.String("country", country),
			zap.String("key", key),
			zap.Error(err))
		return Map{}
	}

	l.metrics.ReferenceLoads.WithLabelValues("store").Inc()
	l.logger.Info("Loaded category mappings",
		zap.String("country", country),
		zap.Int("categories", len(m)),
		zap.Int("skipped", skipped))

	// Empty maps are not cached so a late upload is picked up by the next run.
	if l.cache != nil && len(m) > 0 {
		if err := l.cache.Set(ctx, country, m); err != nil {
			l.logger.Debug("Failed to cache category mapping",
				zap.String("country", country),
				zap.Error(err))
		}
	}
	return m
}

// NewRun returns a run-scoped view that loads each country at most once.
func (l *Loader) NewRun() *Run {
	return &Run{loader: l, maps: make(map[string]Map)}
}

// Run memoizes maps for the duration of one pipeline invocation.
type Run struct {
	loader *Loader
	mu     sync.Mutex
	maps   map[string]Map
}

// Load returns the memoized map for country, loading it on first use.
func (r *Run) Load(ctx context.Context, country string) Map {
	country = strings.ToUpper(country)

	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.maps[country]; ok {
		r.loader.metrics.ReferenceLoads.WithLabelValues("run").Inc()
		return m
	}
	m := r.loader.Load(ctx, country)
	r.maps[country] = m
	return m
}

type document struct {
	Items []json.RawMessage `json:"items"`
}

type item struct {
	ID      any `json:"id"`
	Snippet *struct {
		Title *string `json:"title"`
	} `json:"snippet"`
}

// Parse decodes a reference document. Entries without an id or title are
// skipped and counted.
func Parse(raw []byte) (Map, int, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, 0, fmt.Errorf("failed to decode reference document: %w", err)
	}

	m := make(Map, len(doc.Items))
	skipped := 0
	for _, rawItem := range doc.Items {
		dec := json.NewDecoder(bytes.NewReader(rawItem))
		dec.UseNumber()

		var it item
		if err := dec.Decode(&it); err != nil || it.Snippet == nil || it.Snippet.Title == nil {
			skipped++
			continue
		}

		var id string
		switch v := it.ID.(type) {
		case string:
			id = v
		case json.Number:
			id = v.String()
		default:
			skipped++
			continue
		}
		m[id] = *it.Snippet.Title
	}
	return m, skipped, nil
}
