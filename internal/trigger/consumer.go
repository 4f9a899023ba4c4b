package trigger

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/raaihank/yt-etl/internal/metrics"
)

// Config configures the RabbitMQ consumer.
type Config struct {
	URL         string `yaml:"url" mapstructure:"url"`
	Queue       string `yaml:"queue" mapstructure:"queue"`
	Prefetch    int    `yaml:"prefetch" mapstructure:"prefetch"`
	ConsumerTag string `yaml:"consumer_tag" mapstructure:"consumer_tag"`
}

// Consumer runs the pipeline once per queued notification.
type Consumer struct {
	config  Config
	runner  Runner
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewConsumer creates a consumer.
func NewConsumer(config Config, runner Runner, m *metrics.Metrics, logger *zap.Logger) *Consumer {
	return &Consumer{config: config, runner: runner, metrics: m, logger: logger}
}

// Run consumes until ctx is done or the broker closes the channel.
func (c *Consumer) Run(ctx context.Context) error {
	conn, err := amqp.Dial(c.config.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if c.config.Prefetch > 0 {
		if err := ch.Qos(c.config.Prefetch, 0, false); err != nil {
			return fmt.Errorf("failed to set prefetch: %w", err)
		}
	}
	if _, err := ch.QueueDeclare(c.config.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", c.config.Queue, err)
	}

	deliveries, err := ch.Consume(c.config.Queue, c.config.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume queue %s: %w", c.config.Queue, err)
	}

	c.logger.Info("Waiting for bucket notifications", zap.String("queue", c.config.Queue))
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Consumer stopping")
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed by broker")
			}
			c.Handle(ctx, d.Body)
			if err := d.Ack(false); err != nil {
				c.logger.Warn("Failed to ack delivery", zap.Uint64("tag", d.DeliveryTag), zap.Error(err))
			}
		}
	}
}

// Handle processes one message body. Malformed bodies are logged and
// dropped; the caller acks either way.
func (c *Consumer) Handle(ctx context.Context, body []byte) {
	refs, err := ParseNotification(body)
	if err != nil {
		c.metrics.EventsReceived.WithLabelValues("amqp", "malformed").Inc()
		c.logger.Warn("Dropping malformed notification", zap.Int("bytes", len(body)), zap.Error(err))
		return
	}
	c.metrics.EventsReceived.WithLabelValues("amqp", "accepted").Inc()

	result := c.runner.Run(ctx, refs)
	c.logger.Info("Notification processed",
		zap.String("run_id", result.RunID),
		zap.Int("files", len(result.Files)),
		zap.Duration("duration", result.Duration))
}
