package main

import (
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raaihank/yt-etl/internal/trigger"
)

func newConsumeCommand(stderr io.Writer, root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Process bucket notifications from an AMQP queue.",
		Long: `Consume bucket notifications from the configured AMQP queue. Each
message is processed as one run and acknowledged afterwards; malformed
messages are acknowledged and dropped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := root.load(stderr)
			if err != nil {
				return err
			}
			defer log.Sync()

			svc, err := initializeServices(cfg, log)
			if err != nil {
				return err
			}
			defer svc.cleanup(log)
			watchConfig(log, root.logLevel != "")

			log.Info("Starting AMQP consumer", zap.String("queue", cfg.AMQP.Queue))
			consumer := trigger.NewConsumer(cfg.AMQP, svc.pipeline, svc.metrics, log.WithComponent("consumer").Logger)
			return consumer.Run(cmd.Context())
		},
	}
}
