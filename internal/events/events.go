// Package events carries fire-and-forget notifications about appointments and
// ratings to subscribers such as Kafka and the persisted event log.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	AppointmentCreated      = "appointment.created"
	AppointmentUpdated      = "appointment.updated"
	AppointmentTransitioned = "appointment.transitioned"
	AppointmentCancelled    = "appointment.cancelled"
	AppointmentPaid         = "appointment.paid"
	AppointmentDeleted      = "appointment.deleted"
	RatingSubmitted         = "rating.submitted"
	RatingUpdated           = "rating.updated"
	RatingDeleted           = "rating.deleted"
)

type Event struct {
	ID          uuid.UUID
	Type        string
	AggregateID uuid.UUID
	OccurredAt  time.Time
	Payload     map[string]any
}

func New(eventType string, aggregateID uuid.UUID, payload map[string]any) Event {
	return Event{
		ID:          uuid.New(),
		Type:        eventType,
		AggregateID: aggregateID,
		OccurredAt:  time.Now().UTC(),
		Payload:     payload,
	}
}

// Notifier must not block on delivery.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

type Nop struct{}

func (Nop) Notify(context.Context, Event) {}

// Subscriber receives events from a Dispatcher.
type Subscriber interface {
	Name() string
	Handle(ctx context.Context, ev Event) error
}
