package infra

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/staffhub/platform/internal/metrics"
	"github.com/staffhub/platform/internal/repository"
)

// ActivityTopic is the single topic all activity events ship to. Messages
// are keyed by aggregate ID so per-user ordering survives partitioning; the
// event type travels inside the payload.
const ActivityTopic = "staffhub.activity"

// OutboxPoller ships activity_outbox rows to Kafka. Publishing is
// at-least-once: a row is deleted only after its message is accepted, so a
// crash between publish and delete replays the event.
type OutboxPoller struct {
	pool      *pgxpool.Pool
	outbox    repository.OutboxRepository
	producer  *KafkaProducer
	metrics   *metrics.Metrics
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

// NewOutboxPoller creates a new outbox poller. m may be nil.
func NewOutboxPoller(pool *pgxpool.Pool, outbox repository.OutboxRepository, producer *KafkaProducer, m *metrics.Metrics, logger *slog.Logger) *OutboxPoller {
	return &OutboxPoller{
		pool:      pool,
		outbox:    outbox,
		producer:  producer,
		metrics:   m,
		logger:    logger,
		interval:  500 * time.Millisecond,
		batchSize: 100,
	}
}

// Start begins polling in a goroutine. Stops when ctx is cancelled.
func (p *OutboxPoller) Start(ctx context.Context) {
	p.logger.Info("outbox poller started", "interval", p.interval, "batch_size", p.batchSize)

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Info("outbox poller stopped")
				return
			case <-ticker.C:
				if err := p.poll(ctx); err != nil {
					p.logger.Error("outbox poll error", "error", err)
				}
			}
		}
	}()
}

func (p *OutboxPoller) poll(ctx context.Context) error {
	events, seqIDs, err := p.outbox.FetchUnpublished(ctx, p.pool, p.batchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	var published []int64
	for i, e := range events {
		key := []byte(e.AggregateID)

		msg, _ := json.Marshal(e)
		if err := p.producer.Publish(ctx, ActivityTopic, key, msg); err != nil {
			p.logger.Error("kafka publish failed", "event_id", e.EventID, "error", err)
			continue
		}
		published = append(published, seqIDs[i])
	}

	if len(published) == 0 {
		return nil
	}
	if err := p.outbox.MarkPublished(ctx, p.pool, published); err != nil {
		p.logger.Error("mark published failed", "count", len(published), "error", err)
		return err
	}
	if p.metrics != nil {
		p.metrics.OutboxPublished.Add(float64(len(published)))
	}
	p.logger.Debug("outbox poll complete", "published", len(published))
	return nil
}
