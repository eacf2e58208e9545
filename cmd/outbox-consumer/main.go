package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/staffhub/platform/internal/domain"
	"github.com/staffhub/platform/internal/infra"
	"github.com/staffhub/platform/internal/metrics"
	"github.com/staffhub/platform/internal/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("outbox consumer failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("outbox-consumer connected to postgres")

	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer producer.Close()

	m := metrics.NewMetrics(prometheus.NewRegistry())
	poller := infra.NewOutboxPoller(pool, repository.NewOutboxRepository(), producer, m, logger)
	poller.Start(ctx)

	// With Kafka enabled, also tail the activity topic and log every event.
	if cfg.KafkaEnabled {
		consumer := infra.NewKafkaConsumer(cfg.KafkaBrokers, infra.ActivityTopic,
			"staffhub-activity-logger", cfg.KafkaEnabled, logger)
		defer consumer.Close()
		go tail(ctx, consumer, logger)
	}

	<-ctx.Done()
	logger.Info("outbox-consumer shutting down")
	return nil
}

func tail(ctx context.Context, consumer *infra.KafkaConsumer, logger *slog.Logger) {
	for {
		msg, err := consumer.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("read activity message", "error", err)
			continue
		}

		var event domain.ActivityEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Warn("malformed activity message", "offset", msg.Offset, "error", err)
			continue
		}

		logger.Info("activity event",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"aggregate_type", event.AggregateType,
			"aggregate_id", event.AggregateID,
			"occurred_at", event.OccurredAt,
		)
	}
}
