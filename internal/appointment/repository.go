package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

// Registry is the reference data the lifecycle manager validates against.
type Registry interface {
	GetProvider(ctx context.Context, id uuid.UUID) (domain.Provider, error)
	GetSubject(ctx context.Context, id uuid.UUID) (domain.Subject, error)
	GetRoom(ctx context.Context, id uuid.UUID) (domain.Room, error)
	GetState(ctx context.Context, id uuid.UUID) (domain.LifecycleState, error)
	StateByCode(ctx context.Context, code string) (domain.LifecycleState, error)
}

// Availability is satisfied by *availability.Validator.
type Availability interface {
	IsAvailable(ctx context.Context, q availability.Query) (bool, error)
}

// repository wraps the record store with appointment encoding.
type repository struct {
	store store.Store
}

func (r repository) get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	rec, err := r.store.GetByID(ctx, store.EntityAppointment, id.String())
	if err != nil {
		return domain.Appointment{}, apperr.FromStore(err, "appointment")
	}
	return decode(rec)
}

func (r repository) create(ctx context.Context, a domain.Appointment) (domain.Appointment, error) {
	rec, err := r.store.Create(ctx, store.EntityAppointment, domain.AppointmentRecord(a))
	if err != nil {
		return domain.Appointment{}, apperr.FromStore(err, "appointment")
	}
	return decode(rec)
}

func (r repository) update(ctx context.Context, id uuid.UUID, patch store.Record) (domain.Appointment, error) {
	rec, err := r.store.Update(ctx, store.EntityAppointment, id.String(), patch)
	if err != nil {
		return domain.Appointment{}, apperr.FromStore(err, "appointment")
	}
	return decode(rec)
}

func (r repository) byField(ctx context.Context, field string, value any) ([]domain.Appointment, error) {
	recs, err := r.store.QueryByField(ctx, store.EntityAppointment, field, value)
	if err != nil {
		return nil, apperr.FromStore(err, "appointment")
	}
	return decodeAll(recs)
}

func (r repository) inDateRange(ctx context.Context, from, to time.Time) ([]domain.Appointment, error) {
	recs, err := r.store.QueryRange(ctx, store.EntityAppointment, domain.FieldDate,
		domain.FormatDate(from), domain.FormatDate(to))
	if err != nil {
		return nil, apperr.FromStore(err, "appointment")
	}
	return decodeAll(recs)
}

func decode(rec store.Record) (domain.Appointment, error) {
	a, err := domain.AppointmentFromRecord(rec)
	if err != nil {
		return domain.Appointment{}, apperr.Internal("corrupt_appointment", err)
	}
	return a, nil
}

func decodeAll(recs []store.Record) ([]domain.Appointment, error) {
	out := make([]domain.Appointment, 0, len(recs))
	for _, rec := range recs {
		a, err := decode(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
