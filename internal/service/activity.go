package service

import (
	"context"
	"log/slog"

	"github.com/staffhub/platform/internal/domain"
	"github.com/staffhub/platform/internal/repository"
)

// ActivityRecorder records login/logout/termination events. Recording is
// fire-and-forget: failures are logged and swallowed, never propagated to the
// caller's primary operation.
type ActivityRecorder interface {
	Record(ctx context.Context, evt domain.ActivityEvent)
}

// OutboxActivityRecorder writes activity events to the transactional outbox;
// the poller ships them to Kafka.
type OutboxActivityRecorder struct {
	db     repository.DBTX
	outbox repository.OutboxRepository
	logger *slog.Logger
}

// NewOutboxActivityRecorder creates an outbox-backed ActivityRecorder.
func NewOutboxActivityRecorder(db repository.DBTX, outbox repository.OutboxRepository, logger *slog.Logger) *OutboxActivityRecorder {
	return &OutboxActivityRecorder{db: db, outbox: outbox, logger: logger}
}

// Record writes the event to the outbox, swallowing failures.
func (r *OutboxActivityRecorder) Record(ctx context.Context, evt domain.ActivityEvent) {
	if err := r.outbox.Insert(ctx, r.db, evt); err != nil {
		r.logger.Warn("record activity event failed",
			"event_type", evt.EventType, "aggregate_id", evt.AggregateID, "error", err)
	}
}
