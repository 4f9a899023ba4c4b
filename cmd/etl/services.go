package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/raaihank/yt-etl/internal/cache"
	"github.com/raaihank/yt-etl/internal/config"
	"github.com/raaihank/yt-etl/internal/etl"
	"github.com/raaihank/yt-etl/internal/ledger"
	"github.com/raaihank/yt-etl/internal/logger"
	"github.com/raaihank/yt-etl/internal/metrics"
	"github.com/raaihank/yt-etl/internal/reference"
	"github.com/raaihank/yt-etl/internal/storage"
)

// services holds the dependencies shared by every subcommand
type services struct {
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	refCache *cache.ReferenceCache
	ledger   *ledger.Store
	pipeline *etl.Pipeline
}

// initializeServices wires storage, the optional cache and ledger, and the
// pipeline. The cache is an optimization and is skipped when unreachable;
// an enabled ledger that cannot be reached is a startup error.
func initializeServices(cfg *config.Config, log *logger.Logger) (*services, error) {
	s := &services{registry: prometheus.NewRegistry()}
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.metrics = metrics.New(s.registry)

	log.Info("Initializing object store", zap.String("backend", cfg.Storage.Backend))
	store, err := storage.Open(cfg.Storage, log.WithComponent("storage").Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object store: %w", err)
	}

	var refCache reference.Cache
	if cfg.Cache.Enabled {
		log.Info("Initializing reference cache...")
		rc, err := cache.NewReferenceCache(&cfg.Cache, log.WithComponent("cache").Logger)
		if err != nil {
			log.Warn("Reference cache unavailable, continuing without it", zap.Error(err))
		} else {
			s.refCache = rc
			refCache = rc
		}
	}

	s.pipeline, err = etl.NewPipeline(&cfg.Pipeline, store, refCache, s.metrics, log.WithComponent("pipeline").Logger)
	if err != nil {
		s.cleanup(log)
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	if cfg.Ledger.Enabled {
		log.Info("Initializing run ledger...")
		s.ledger, err = ledger.NewStore(&cfg.Ledger, log.WithComponent("ledger").Logger)
		if err != nil {
			s.cleanup(log)
			return nil, fmt.Errorf("failed to initialize run ledger: %w", err)
		}
		s.pipeline.AddSink(s.ledger)
	}

	return s, nil
}

// cleanup closes every connection that was opened
func (s *services) cleanup(log *logger.Logger) {
	if s.refCache != nil {
		if err := s.refCache.Close(); err != nil {
			log.Warn("Failed to close reference cache", zap.Error(err))
		}
	}
	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil {
			log.Warn("Failed to close run ledger", zap.Error(err))
		}
	}
}
