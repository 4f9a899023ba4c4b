// Package etl drives trending-video CSV files from the raw prefix through
// decoding, normalization, enrichment and cleaning into the partitioned
// parquet dataset.
package etl

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raaihank/yt-etl/internal/clean"
	"github.com/raaihank/yt-etl/internal/decode"
	"github.com/raaihank/yt-etl/internal/enrich"
	"github.com/raaihank/yt-etl/internal/metrics"
	"github.com/raaihank/yt-etl/internal/partition"
	"github.com/raaihank/yt-etl/internal/reference"
	"github.com/raaihank/yt-etl/internal/schema"
	"github.com/raaihank/yt-etl/internal/storage"
)

// Pipeline processes the files of trigger events. A Pipeline may run
// several invocations concurrently; each invocation is sequential.
type Pipeline struct {
	store    storage.ObjectStore
	resolver *decode.Resolver
	loader   *reference.Loader
	cleaner  *clean.Cleaner
	writer   *partition.Writer
	config   *Config
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.RWMutex
	sinks []ResultSink
}

// NewPipeline creates a new ETL pipeline. refCache may be nil.
func NewPipeline(
	config *Config,
	store storage.ObjectStore,
	refCache reference.Cache,
	m *metrics.Metrics,
	logger *zap.Logger,
) (*Pipeline, error) {
	resolver, err := decode.NewResolver(config.Encodings, logger.With(zap.String("stage", "decode")))
	if err != nil {
		return nil, fmt.Errorf("failed to create encoding resolver: %w", err)
	}

	logger.Info("Pipeline configured",
		zap.String("bucket", config.Bucket),
		zap.Strings("encodings", resolver.Encodings()),
		zap.Bool("reference_cache", refCache != nil))

	return &Pipeline{
		store:    store,
		resolver: resolver,
		loader:   reference.NewLoader(store, config.Bucket, config.RawPrefix, refCache, m, logger.With(zap.String("stage", "reference"))),
		cleaner:  clean.New(config.Clean, logger.With(zap.String("stage", "clean"))),
		writer:   partition.NewWriter(store, config.Bucket, config.ProcessedPrefix, logger.With(zap.String("stage", "write"))),
		config:   config,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// AddSink registers a receiver of per-file results.
func (p *Pipeline) AddSink(sink ResultSink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinks = append(p.sinks, sink)
}

// Run processes refs in order. A failing file is recorded and skipped; the
// run status is always StatusSuccess. Cancelling ctx stops the run before
// the next file.
func (p *Pipeline) Run(ctx context.Context, refs []FileRef) *RunResult {
	start := time.Now()
	result := &RunResult{
		RunID:  uuid.NewString(),
		Status: StatusSuccess,
		Files:  make([]*FileResult, 0, len(refs)),
	}
	p.metrics.Runs.Inc()

	logger := p.logger.With(zap.String("run_id", result.RunID))
	logger.Info("Starting ETL run", zap.Int("files", len(refs)))

	run := p.loader.NewRun()
	for i, ref := range refs {
		if err := ctx.Err(); err != nil {
			logger.Warn("ETL run interrupted",
				zap.Int("processed", i),
				zap.Int("remaining", len(refs)-i),
				zap.Error(err))
			break
		}

		fr := p.ProcessFile(ctx, ref, run)
		fr.RunID = result.RunID
		result.Files = append(result.Files, fr)
		p.publish(ctx, fr)
	}

	result.Duration = time.Since(start)
	logger.Info("ETL run completed",
		zap.Int("written", result.Count(StatusWritten)),
		zap.Int("empty", result.Count(StatusEmpty)),
		zap.Int("skipped", result.Count(StatusSkipped)),
		zap.Int("failed", result.Count(StatusFailed)),
		zap.Duration("duration", result.Duration))
	return result
}

// ProcessFile runs one file through every stage. Failures are classified
// into the result rather than returned. A nil run loads reference data
// for this file only.
func (p *Pipeline) ProcessFile(ctx context.Context, ref FileRef, run *reference.Run) *FileResult {
	start := time.Now()
	if run == nil {
		run = p.loader.NewRun()
	}
	res := &FileResult{
		Bucket:      ref.Bucket,
		Key:         ref.Key,
		ProcessedAt: p.now().UTC(),
	}

	if !IsCSV(ref.Key) {
		p.logger.Info("Skipping non-CSV object", zap.String("bucket", ref.Bucket), zap.String("key", ref.Key))
		res.Status = StatusSkipped
	} else {
		res.Country = CountryOf(ref.Key)
		if err := p.process(ctx, ref, run, res); err != nil {
			pe := &PipelineError{Kind: Classify(err), Ref: ref, Err: err}
			res.Status = StatusFailed
			res.ErrorKind = pe.Kind
			res.Error = pe.Error()

			p.metrics.FileErrors.WithLabelValues(string(pe.Kind)).Inc()
			p.logger.Error("Failed to process file",
				zap.String("bucket", ref.Bucket),
				zap.String("key", ref.Key),
				zap.String("kind", string(pe.Kind)),
				zap.Error(err))
		}
	}

	res.Duration = time.Since(start)
	p.metrics.FilesProcessed.WithLabelValues(string(res.Status)).Inc()
	return res
}

func (p *Pipeline) process(ctx context.Context, ref FileRef, run *reference.Run, res *FileResult) error {
	p.logger.Info("Processing file",
		zap.String("bucket", ref.Bucket),
		zap.String("key", ref.Key),
		zap.String("country", res.Country))

	stageStart := time.Now()
	data, err := p.store.Get(ctx, ref.Bucket, ref.Key)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRetrieval, err)
	}
	p.metrics.ObserveStage("fetch", stageStart)
	buf := &RawBuffer{Ref: ref, Country: res.Country, Data: data}

	stageStart = time.Now()
	decoded, err := p.resolver.Resolve(buf.Data)
	if err != nil {
		return err
	}
	p.metrics.ObserveStage("decode", stageStart)
	p.metrics.Encodings.WithLabelValues(decoded.Encoding, strconv.FormatBool(decoded.Lossy)).Inc()
	res.Encoding = decoded.Encoding
	res.Lossy = decoded.Lossy
	res.RowsIn = decoded.Table.NumRows()
	p.metrics.RowsRead.WithLabelValues(buf.Country).Add(float64(res.RowsIn))

	t, err := schema.Normalize(decoded.Table)
	if err != nil {
		return err
	}

	stageStart = time.Now()
	matched, err := enrich.Enrich(t, run.Load(ctx, buf.Country))
	if err != nil {
		return fmt.Errorf("failed to enrich table: %w", err)
	}
	p.metrics.ObserveStage("enrich", stageStart)
	res.CategoriesMatched = matched

	stageStart = time.Now()
	stats := p.cleaner.Clean(t)
	p.metrics.ObserveStage("clean", stageStart)
	p.metrics.RowsRemoved.WithLabelValues("duplicate").Add(float64(stats.Duplicates))
	p.metrics.RowsRemoved.WithLabelValues("missing_required").Add(float64(stats.Dropped))
	p.metrics.ValuesFilled.WithLabelValues("numeric").Add(float64(stats.Zeroed))
	p.metrics.ValuesFilled.WithLabelValues("text").Add(float64(stats.Filled))
	res.Duplicates = stats.Duplicates
	res.Dropped = stats.Dropped
	res.RowsOut = t.NumRows()

	if t.NumRows() == 0 {
		p.logger.Warn("No rows left after cleaning, skipping write",
			zap.String("bucket", ref.Bucket),
			zap.String("key", ref.Key))
		res.Status = StatusEmpty
		return nil
	}

	key := partition.KeyFor(buf.Country, res.ProcessedAt)
	res.Partition = key.Prefix(p.config.ProcessedPrefix)

	stageStart = time.Now()
	objectKey, n, err := p.writer.Write(ctx, t, key)
	if err != nil {
		return err
	}
	p.metrics.ObserveStage("write", stageStart)
	p.metrics.RowsWritten.WithLabelValues(buf.Country).Add(float64(res.RowsOut))
	p.metrics.BytesWritten.Add(float64(n))

	res.OutputKey = objectKey
	res.Status = StatusWritten
	p.logger.Info("File processed",
		zap.String("key", ref.Key),
		zap.String("country", buf.Country),
		zap.String("encoding", res.Encoding),
		zap.Int("rows_in", res.RowsIn),
		zap.Int("rows_out", res.RowsOut),
		zap.String("output", objectKey))
	return nil
}

func (p *Pipeline) publish(ctx context.Context, fr *FileResult) {
	p.mu.RLock()
	sinks := p.sinks
	p.mu.RUnlock()

	for _, sink := range sinks {
		if err := sink.Publish(ctx, fr); err != nil {
			p.logger.Warn("Failed to publish file result",
				zap.Stringer("file", fr.Ref()),
				zap.Error(err))
		}
	}
}
