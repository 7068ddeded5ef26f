package appointment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

const maxTextLength = 1000

type CreateRequest struct {
	ProviderID uuid.UUID
	SubjectID  uuid.UUID
	RoomID     *uuid.UUID
	Date       time.Time
	Start      domain.Clock
	End        domain.Clock
	// StateID defaults to the scheduled state.
	StateID *uuid.UUID
	Price   *decimal.Decimal
	// DurationMinutes defaults to the length of the interval.
	DurationMinutes int

	Reason        string
	Notes         string
	Diagnosis     string
	Treatment     string
	Prescriptions string
}

// Patch holds the fields Update may change. State and paid flag have their
// own operations.
type Patch struct {
	ProviderID      *uuid.UUID
	SubjectID       *uuid.UUID
	RoomID          *uuid.UUID
	ClearRoom       bool
	Date            *time.Time
	Start           *domain.Clock
	End             *domain.Clock
	Price           *decimal.Decimal
	ClearPrice      bool
	DurationMinutes *int
	ReminderSent    *bool

	Reason        *string
	Notes         *string
	Diagnosis     *string
	Treatment     *string
	Prescriptions *string
}

// touchesSlot reports whether p names any field that places the
// appointment on a provider's day.
func (p Patch) touchesSlot() bool {
	return p.ProviderID != nil || p.Date != nil || p.Start != nil || p.End != nil
}

// movesSlot reports whether applying p to a changes the occupied interval.
func (p Patch) movesSlot(a domain.Appointment) bool {
	return (p.ProviderID != nil && *p.ProviderID != a.ProviderID) ||
		(p.Date != nil && !domain.DateOf(*p.Date).Equal(a.Date)) ||
		(p.Start != nil && *p.Start != a.Start) ||
		(p.End != nil && *p.End != a.End)
}

func (p Patch) apply(a domain.Appointment) domain.Appointment {
	if p.ProviderID != nil {
		a.ProviderID = *p.ProviderID
	}
	if p.SubjectID != nil {
		a.SubjectID = *p.SubjectID
	}
	if p.ClearRoom {
		a.RoomID = nil
	} else if p.RoomID != nil {
		room := *p.RoomID
		a.RoomID = &room
	}
	if p.Date != nil {
		a.Date = domain.DateOf(*p.Date)
	}
	if p.Start != nil {
		a.Start = *p.Start
	}
	if p.End != nil {
		a.End = *p.End
	}
	if p.ClearPrice {
		a.Price = nil
	} else if p.Price != nil {
		price := *p.Price
		a.Price = &price
	}
	if p.DurationMinutes != nil {
		a.DurationMinutes = *p.DurationMinutes
	} else if p.Start != nil || p.End != nil {
		a.DurationMinutes = int(a.Interval().Duration() / time.Minute)
	}
	if p.ReminderSent != nil {
		a.ReminderSent = *p.ReminderSent
	}
	setText(&a.Reason, p.Reason)
	setText(&a.Notes, p.Notes)
	setText(&a.Diagnosis, p.Diagnosis)
	setText(&a.Treatment, p.Treatment)
	setText(&a.Prescriptions, p.Prescriptions)
	return a
}

// record returns the stored fields of merged that p sets. Keys p leaves
// alone are not written, so a concurrent change to them survives.
func (p Patch) record(merged domain.Appointment) store.Record {
	full := domain.AppointmentRecord(merged)
	keys := make([]string, 0, 16)
	if p.touchesSlot() {
		keys = append(keys, domain.FieldProviderID, domain.FieldDate, "start", "end", domain.FieldSlotKey)
	}
	if p.SubjectID != nil {
		keys = append(keys, domain.FieldSubjectID)
	}
	if p.RoomID != nil || p.ClearRoom {
		keys = append(keys, "room_id")
	}
	if p.Price != nil || p.ClearPrice {
		keys = append(keys, "price")
	}
	if p.DurationMinutes != nil || p.Start != nil || p.End != nil {
		keys = append(keys, "duration_minutes")
	}
	if p.ReminderSent != nil {
		keys = append(keys, "reminder_sent")
	}
	for key, v := range map[string]*string{
		"reason":        p.Reason,
		"notes":         p.Notes,
		"diagnosis":     p.Diagnosis,
		"treatment":     p.Treatment,
		"prescriptions": p.Prescriptions,
	} {
		if v != nil {
			keys = append(keys, key)
		}
	}

	rec := make(store.Record, len(keys))
	for _, key := range keys {
		rec[key] = full[key]
	}
	return rec
}

func setText(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
