package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/raaihank/yt-etl/internal/config"
	"github.com/raaihank/yt-etl/internal/logger"
	"github.com/raaihank/yt-etl/internal/server"
	"github.com/raaihank/yt-etl/internal/trigger"
	"github.com/raaihank/yt-etl/internal/websocket"
)

func newServeCommand(stderr io.Writer, root *rootFlags) *cobra.Command {
	var consume bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept bucket notifications over HTTP.",
		Long: `Start the HTTP intake. Bucket notifications POSTed to /events are
processed synchronously and answered with the run result. File results are
streamed to /ws subscribers and metrics are exposed for scraping.

With --consume the AMQP consumer runs in the same process.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := root.load(stderr)
			if err != nil {
				return err
			}
			defer log.Sync()

			log.Info("Starting YouTube trending ETL",
				zap.String("version", version),
				zap.String("commit", commit),
				zap.String("build_date", date),
				zap.Int("port", cfg.Server.Port))

			svc, err := initializeServices(cfg, log)
			if err != nil {
				return err
			}
			defer svc.cleanup(log)

			hub := websocket.NewHub(&cfg.WebSocket, log.WithComponent("websocket").Logger)
			svc.pipeline.AddSink(hub)
			srv := server.New(cfg, svc.pipeline, hub, svc.registry, svc.metrics, log)
			watchConfig(log, root.logLevel != "")

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				hub.Run(ctx)
				return nil
			})
			g.Go(func() error {
				log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
				return srv.Start()
			})
			g.Go(func() error {
				<-ctx.Done()
				log.Info("Shutting down server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				if err := srv.Stop(shutdownCtx); err != nil {
					return fmt.Errorf("failed to shutdown server gracefully: %w", err)
				}
				log.Info("Server shutdown complete")
				return nil
			})
			if consume {
				consumer := trigger.NewConsumer(cfg.AMQP, svc.pipeline, svc.metrics, log.WithComponent("consumer").Logger)
				g.Go(func() error {
					return consumer.Run(ctx)
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&consume, "consume", false, "Also consume notifications from the AMQP queue.")
	return cmd
}

// watchConfig applies log level edits to the running process. Other
// settings take effect on restart. A level pinned by --log-level is kept.
func watchConfig(log *logger.Logger, levelPinned bool) {
	err := config.Watch(levelReloader(log, levelPinned), func(err error) {
		log.Warn("Configuration reload failed", zap.Error(err))
	})
	if err != nil {
		log.Debug("Configuration watch disabled", zap.Error(err))
	}
}

func levelReloader(log *logger.Logger, levelPinned bool) func(*config.Config) {
	return func(c *config.Config) {
		if c.Logging.Level == log.Level().String() {
			return
		}
		if levelPinned {
			log.Debug("Ignoring log level change, level set on the command line",
				zap.String("level", c.Logging.Level))
			return
		}
		if err := log.SetLevel(c.Logging.Level); err != nil {
			log.Warn("Ignoring log level change", zap.Error(err))
			return
		}
		log.Info("Log level changed", zap.String("level", c.Logging.Level))
	}
}
