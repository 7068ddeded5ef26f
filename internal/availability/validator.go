// Package availability decides whether a provider's interval is free and
// lists the free slots of a working day.
package availability

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

// StateSource reports which lifecycle states no longer hold their slot.
type StateSource interface {
	SlotReleasingStates(ctx context.Context) (map[uuid.UUID]bool, error)
}

type Query struct {
	ProviderID uuid.UUID
	Date       time.Time
	Start      domain.Clock
	End        domain.Clock
	// ExcludeID skips the appointment being rescheduled.
	ExcludeID uuid.UUID
}

func (q Query) Interval() domain.Interval {
	return domain.Interval{Start: q.Start, End: q.End}
}

type Validator struct {
	store  store.Store
	states StateSource
	logger *slog.Logger
}

func NewValidator(s store.Store, states StateSource, logger *slog.Logger) *Validator {
	return &Validator{
		store:  s,
		states: states,
		logger: logger.With("component", "availability"),
	}
}

// Busy returns the intervals occupied on the provider's date, ordered by
// start. Appointments in slot-releasing states and excludeID are skipped.
func (v *Validator) Busy(ctx context.Context, providerID uuid.UUID, date time.Time, excludeID uuid.UUID) ([]domain.Interval, error) {
	recs, err := v.store.QueryByField(ctx, store.EntityAppointment, domain.FieldSlotKey,
		domain.SlotKey(providerID, domain.FormatDate(date)))
	if err != nil {
		return nil, apperr.FromStore(err, "appointment")
	}

	released, err := v.states.SlotReleasingStates(ctx)
	if err != nil {
		return nil, err
	}

	busy := make([]domain.Interval, 0, len(recs))
	for _, rec := range recs {
		appt, err := domain.AppointmentFromRecord(rec)
		if err != nil {
			return nil, apperr.Internal("corrupt_appointment", err)
		}
		if appt.ID == excludeID || released[appt.StateID] {
			continue
		}
		busy = append(busy, appt.Interval())
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start < busy[j].Start })
	return busy, nil
}

// IsAvailable reports whether q's interval overlaps no occupied interval.
// Store failures are returned as errors, never as "available".
func (v *Validator) IsAvailable(ctx context.Context, q Query) (bool, error) {
	want := q.Interval()
	if !want.Valid() {
		return false, apperr.Validation("invalid_interval", "end %s must be after start %s", q.End, q.Start)
	}

	busy, err := v.Busy(ctx, q.ProviderID, q.Date, q.ExcludeID)
	if err != nil {
		return false, err
	}
	for _, b := range busy {
		if want.Overlaps(b) {
			v.logger.DebugContext(ctx, "interval taken",
				"provider_id", q.ProviderID, "date", domain.FormatDate(q.Date),
				"requested", want.String(), "existing", b.String())
			return false, nil
		}
	}
	return true, nil
}
