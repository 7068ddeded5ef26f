package availability

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/domain"
)

var (
	DefaultWindow   = domain.Interval{Start: domain.NewClock(9, 0), End: domain.NewClock(17, 0)}
	DefaultSlotSize = 30 * time.Minute
)

// BusyLoader is satisfied by *Validator.
type BusyLoader interface {
	Busy(ctx context.Context, providerID uuid.UUID, date time.Time, excludeID uuid.UUID) ([]domain.Interval, error)
}

// FreeSlots walks window in slot steps and returns the candidates that
// overlap nothing in busy. A candidate must fit entirely inside the window.
func FreeSlots(window domain.Interval, slot time.Duration, busy []domain.Interval) []domain.Interval {
	step := domain.Clock(slot / time.Minute)
	if step <= 0 || !window.Valid() {
		return []domain.Interval{}
	}

	out := []domain.Interval{}
	for start := window.Start; start+step <= window.End; start += step {
		cand := domain.Interval{Start: start, End: start + step}
		if !overlapsAny(cand, busy) {
			out = append(out, cand)
		}
	}
	return out
}

func overlapsAny(c domain.Interval, busy []domain.Interval) bool {
	for _, b := range busy {
		if c.Overlaps(b) {
			return true
		}
	}
	return false
}

// ProviderLookup is satisfied by *registry.Service.
type ProviderLookup interface {
	GetProvider(ctx context.Context, id uuid.UUID) (domain.Provider, error)
}

type Generator struct {
	providers ProviderLookup
	busy      BusyLoader
	window    domain.Interval
	slotSize  time.Duration
}

func NewGenerator(providers ProviderLookup, busy BusyLoader, window domain.Interval, slotSize time.Duration) *Generator {
	if !window.Valid() {
		window = DefaultWindow
	}
	if slotSize < time.Minute {
		slotSize = DefaultSlotSize
	}
	return &Generator{providers: providers, busy: busy, window: window, slotSize: slotSize}
}

// SlotRequest overrides the generator defaults when fields are non-zero.
type SlotRequest struct {
	ProviderID uuid.UUID
	Date       time.Time
	Window     domain.Interval
	SlotSize   time.Duration
}

// FreeSlots fails with NotFound for an unknown provider. It does not look at
// the provider's availability flag; booking checks that separately.
func (g *Generator) FreeSlots(ctx context.Context, req SlotRequest) ([]domain.Interval, error) {
	window := g.window
	if req.Window != (domain.Interval{}) {
		window = req.Window
	}
	slot := g.slotSize
	if req.SlotSize != 0 {
		slot = req.SlotSize
	}

	if !window.Valid() {
		return nil, apperr.Validation("invalid_window", "window end %s must be after start %s", window.End, window.Start)
	}
	if slot < time.Minute || slot%time.Minute != 0 {
		return nil, apperr.Validation("invalid_slot_size", "slot size must be a positive whole number of minutes")
	}

	if _, err := g.providers.GetProvider(ctx, req.ProviderID); err != nil {
		return nil, err
	}
	busy, err := g.busy.Busy(ctx, req.ProviderID, req.Date, uuid.Nil)
	if err != nil {
		return nil, err
	}
	return FreeSlots(window, slot, busy), nil
}
