package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/raaihank/yt-etl/internal/config"
	"github.com/raaihank/yt-etl/internal/logger"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	logLevel   string
}

// NewRootCommand builds the etl command tree. Logs go to stderr so that
// stdout carries only command output.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	flags := &rootFlags{}
	rc := &cobra.Command{
		Use:   "etl",
		Short: "YouTube trending-video ETL",
		Long: `etl turns raw trending-video CSV exports into a country/year/month
partitioned parquet dataset.

Files can be processed directly with "etl run", from bucket notifications
posted over HTTP with "etl serve", or from an AMQP queue with "etl consume".`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rc.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Configuration file to read from.")
	rc.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override the configured log level.")

	rc.AddCommand(newRunCommand(stdin, stdout, stderr, flags))
	rc.AddCommand(newServeCommand(stderr, flags))
	rc.AddCommand(newConsumeCommand(stderr, flags))

	rc.SetIn(stdin)
	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

// load reads the configuration and builds the logger every subcommand
// starts from.
func (f *rootFlags) load(stderr io.Writer) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}

	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: true,
			Path:    cfg.Logging.File.Path,
		}
	}

	log, err := logger.NewWithSink(loggerConfig, zapcore.AddSync(stderr))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}
