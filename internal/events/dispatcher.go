package events

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Dispatcher queues events and fans them out to subscribers on a background
// goroutine. A full queue drops the event with a warning.
type Dispatcher struct {
	logger      *slog.Logger
	subscribers []Subscriber
	queue       chan Event
	timeout     time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	// OnDrop is called for each event that could not be queued.
	OnDrop func(ev Event)
}

func NewDispatcher(logger *slog.Logger, buffer int, subscribers ...Subscriber) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	d := &Dispatcher{
		logger:      logger.With("component", "events"),
		subscribers: subscribers,
		queue:       make(chan Event, buffer),
		timeout:     5 * time.Second,
		done:        make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *Dispatcher) Notify(ctx context.Context, ev Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.WarnContext(ctx, "event after shutdown dropped", "event_type", ev.Type, "event_id", ev.ID)
		return
	}

	select {
	case d.queue <- ev:
	default:
		d.logger.WarnContext(ctx, "event queue full, dropping event", "event_type", ev.Type, "event_id", ev.ID)
		if d.OnDrop != nil {
			d.OnDrop(ev)
		}
	}
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for ev := range d.queue {
		for _, sub := range d.subscribers {
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			if err := sub.Handle(ctx, ev); err != nil {
				d.logger.Error("event delivery failed",
					"subscriber", sub.Name(), "event_type", ev.Type, "event_id", ev.ID, "err", err)
			}
			cancel()
		}
	}
}

// Close stops accepting events and waits for queued ones to be delivered or
// for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
