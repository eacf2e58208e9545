package repository

import (
	"context"
	"fmt"

	"github.com/staffhub/platform/internal/domain"
)

type outboxRepo struct{}

// NewOutboxRepository returns a pgx-backed OutboxRepository.
func NewOutboxRepository() OutboxRepository {
	return &outboxRepo{}
}

func (r *outboxRepo) Insert(ctx context.Context, db DBTX, evt domain.ActivityEvent) error {
	_, err := db.Exec(ctx, `
		INSERT INTO activity_outbox (event_id, aggregate_type, aggregate_id, event_type, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		evt.EventID, string(evt.AggregateType), evt.AggregateID, string(evt.EventType),
		evt.Payload, evt.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert activity event: %w", err)
	}
	return nil
}

func (r *outboxRepo) FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]domain.ActivityEvent, []int64, error) {
	rows, err := db.Query(ctx, `
		SELECT id, event_id, aggregate_type, aggregate_id, event_type, payload, occurred_at
		FROM activity_outbox
		ORDER BY id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch unpublished events: %w", err)
	}
	defer rows.Close()

	var events []domain.ActivityEvent
	var seqIDs []int64
	for rows.Next() {
		var evt domain.ActivityEvent
		var seqID int64
		err := rows.Scan(&seqID, &evt.EventID, &evt.AggregateType, &evt.AggregateID,
			&evt.EventType, &evt.Payload, &evt.OccurredAt)
		if err != nil {
			return nil, nil, fmt.Errorf("scan outbox row: %w", err)
		}
		events = append(events, evt)
		seqIDs = append(seqIDs, seqID)
	}
	return events, seqIDs, rows.Err()
}

func (r *outboxRepo) MarkPublished(ctx context.Context, db DBTX, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := db.Exec(ctx, `DELETE FROM activity_outbox WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}
