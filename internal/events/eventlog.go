package events

import (
	"context"
	"fmt"

	"github.com/hackgods/clinic-scheduling/internal/store"
)

// EventLog persists events as event_log records.
type EventLog struct {
	store store.Store
}

func NewEventLog(s store.Store) *EventLog {
	return &EventLog{store: s}
}

func (l *EventLog) Name() string { return "event_log" }

func (l *EventLog) Handle(ctx context.Context, ev Event) error {
	payload := ev.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	_, err := l.store.Create(ctx, store.EntityEventLog, store.Record{
		store.FieldID:  ev.ID.String(),
		"event_type":   ev.Type,
		"aggregate_id": ev.AggregateID.String(),
		"occurred_at":  store.FormatTime(ev.OccurredAt),
		"payload":      payload,
	})
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

// History returns the logged events for one aggregate in insertion order.
func (l *EventLog) History(ctx context.Context, aggregateID string) ([]store.Record, error) {
	recs, err := l.store.QueryByField(ctx, store.EntityEventLog, "aggregate_id", aggregateID)
	if err != nil {
		return nil, fmt.Errorf("load event history: %w", err)
	}
	return recs, nil
}
