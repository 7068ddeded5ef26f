package appointment

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/events"
	"github.com/hackgods/clinic-scheduling/internal/lock"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

// Service is the appointment lifecycle manager. It is the only writer of
// appointment intervals and of provider consultation totals.
type Service struct {
	repo     repository
	store    store.Store
	registry Registry
	avail    Availability
	locker   lock.Locker
	notifier events.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithNotifier(n events.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock sets the time source used to reject bookings in the past.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(s store.Store, registry Registry, avail Availability, locker lock.Locker, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		repo:     repository{store: s},
		store:    s,
		registry: registry,
		avail:    avail,
		locker:   locker,
		notifier: events.Nop{},
		logger:   logger.With("component", "appointment"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// SlotLockKey is the mutual exclusion key for one provider's day.
func SlotLockKey(providerID uuid.UUID, date time.Time) string {
	return "slot:" + providerID.String() + ":" + domain.FormatDate(date)
}

func (s *Service) today() time.Time {
	return domain.DateOf(s.now())
}

func validateFields(a domain.Appointment) error {
	if !a.Interval().Valid() {
		return apperr.Validation("invalid_interval", "end %s must be after start %s", a.End, a.Start)
	}
	if a.DurationMinutes < 0 {
		return apperr.Validation("invalid_duration", "duration must not be negative")
	}
	if a.Price != nil && a.Price.IsNegative() {
		return apperr.Validation("invalid_price", "price must not be negative")
	}
	for name, text := range map[string]string{
		"reason":        a.Reason,
		"notes":         a.Notes,
		"diagnosis":     a.Diagnosis,
		"treatment":     a.Treatment,
		"prescriptions": a.Prescriptions,
	} {
		if utf8.RuneCountInString(text) > maxTextLength {
			return apperr.Validation("text_too_long", "%s exceeds %d characters", name, maxTextLength)
		}
	}
	return nil
}

func (s *Service) bookableProvider(ctx context.Context, id uuid.UUID) (domain.Provider, error) {
	p, err := s.registry.GetProvider(ctx, id)
	if err != nil {
		return domain.Provider{}, err
	}
	if !p.Bookable() {
		return domain.Provider{}, apperr.Conflict("provider_unavailable",
			"provider %s is not accepting appointments", id)
	}
	return p, nil
}

func (s *Service) activeRoom(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	room, err := s.registry.GetRoom(ctx, *id)
	if err != nil {
		return err
	}
	if !room.Active {
		return apperr.Conflict("room_inactive", "room %s is not in service", room.Name)
	}
	return nil
}

func (s *Service) initialState(ctx context.Context, id *uuid.UUID) (domain.LifecycleState, error) {
	if id == nil {
		return s.registry.StateByCode(ctx, domain.StateScheduled)
	}
	st, err := s.registry.GetState(ctx, *id)
	if err != nil {
		return domain.LifecycleState{}, err
	}
	if !st.Active {
		return domain.LifecycleState{}, apperr.Validation("state_inactive", "lifecycle state %s is not active", st.Code)
	}
	return st, nil
}

// ensureFree fails with Conflict unless a's interval is free, ignoring a itself.
func (s *Service) ensureFree(ctx context.Context, a domain.Appointment) error {
	ok, err := s.avail.IsAvailable(ctx, availability.Query{
		ProviderID: a.ProviderID,
		Date:       a.Date,
		Start:      a.Start,
		End:        a.End,
		ExcludeID:  a.ID,
	})
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Conflict("slot_unavailable", "provider %s is already booked during %s on %s",
			a.ProviderID, a.Interval(), domain.FormatDate(a.Date))
	}
	return nil
}

// Create books a new appointment. The availability check and the write run
// under the provider's day lock, so two overlapping requests cannot both
// succeed.
func (s *Service) Create(ctx context.Context, req CreateRequest) (domain.Appointment, error) {
	appt := domain.Appointment{
		ID:              uuid.New(),
		ProviderID:      req.ProviderID,
		SubjectID:       req.SubjectID,
		RoomID:          req.RoomID,
		Date:            domain.DateOf(req.Date),
		Start:           req.Start,
		End:             req.End,
		DurationMinutes: req.DurationMinutes,
		Price:           req.Price,
		Reason:          req.Reason,
		Notes:           req.Notes,
		Diagnosis:       req.Diagnosis,
		Treatment:       req.Treatment,
		Prescriptions:   req.Prescriptions,
	}
	if err := validateFields(appt); err != nil {
		return domain.Appointment{}, s.bookingFailed(err)
	}
	if appt.Date.Before(s.today()) {
		return domain.Appointment{}, s.bookingFailed(apperr.Validation("past_date",
			"date %s is in the past", domain.FormatDate(appt.Date)))
	}
	if appt.DurationMinutes == 0 {
		appt.DurationMinutes = int(appt.Interval().Duration() / time.Minute)
	}

	if _, err := s.bookableProvider(ctx, req.ProviderID); err != nil {
		return domain.Appointment{}, s.bookingFailed(err)
	}
	if _, err := s.registry.GetSubject(ctx, req.SubjectID); err != nil {
		return domain.Appointment{}, s.bookingFailed(err)
	}
	if err := s.activeRoom(ctx, req.RoomID); err != nil {
		return domain.Appointment{}, s.bookingFailed(err)
	}
	state, err := s.initialState(ctx, req.StateID)
	if err != nil {
		return domain.Appointment{}, s.bookingFailed(err)
	}
	appt.StateID = state.ID

	var created domain.Appointment
	err = s.locker.WithLock(ctx, SlotLockKey(appt.ProviderID, appt.Date), func(lockCtx context.Context) error {
		if !state.ReleasesSlot {
			if err := s.ensureFree(lockCtx, appt); err != nil {
				return err
			}
		}
		var err error
		created, err = s.repo.create(lockCtx, appt)
		return err
	})
	if err != nil {
		return domain.Appointment{}, s.bookingFailed(err)
	}

	metrics.BookingOutcomes.WithLabelValues("booked").Inc()
	s.logger.InfoContext(ctx, "appointment created",
		"appointment_id", created.ID, "provider_id", created.ProviderID,
		"date", domain.FormatDate(created.Date), "interval", created.Interval().String())
	s.notify(ctx, events.AppointmentCreated, created)
	return created, nil
}

func (s *Service) bookingFailed(err error) error {
	err = lockFailure(err)
	outcome := "error"
	switch apperr.KindOf(err) {
	case apperr.KindConflict:
		outcome = "conflict"
	case apperr.KindValidation, apperr.KindNotFound:
		outcome = "rejected"
	}
	metrics.BookingOutcomes.WithLabelValues(outcome).Inc()
	return err
}

func lockFailure(err error) error {
	if errors.Is(err, lock.ErrNotAcquired) {
		return apperr.Infrastructure("lock_unavailable", err)
	}
	return err
}

// Update applies patch. Only the fields the patch names are written. A patch
// touching the provider, date or interval is applied to a copy re-read under
// the target day's lock and revalidated there, ignoring the appointment
// itself.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch Patch) (domain.Appointment, error) {
	current, err := s.repo.get(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}
	if err := s.validatePatch(patch, patch.apply(current)); err != nil {
		return domain.Appointment{}, err
	}
	if patch.ProviderID != nil && *patch.ProviderID != current.ProviderID {
		if _, err := s.bookableProvider(ctx, *patch.ProviderID); err != nil {
			return domain.Appointment{}, err
		}
	}
	if patch.SubjectID != nil && *patch.SubjectID != current.SubjectID {
		if _, err := s.registry.GetSubject(ctx, *patch.SubjectID); err != nil {
			return domain.Appointment{}, err
		}
	}
	if patch.RoomID != nil && !patch.ClearRoom {
		if err := s.activeRoom(ctx, patch.RoomID); err != nil {
			return domain.Appointment{}, err
		}
	}

	previous, updated := current, current
	if patch.touchesSlot() {
		previous, updated, err = s.reschedule(ctx, id, patch, current)
	} else if rec := patch.record(patch.apply(current)); len(rec) > 0 {
		updated, err = s.repo.update(ctx, id, rec)
	}
	if err != nil {
		return domain.Appointment{}, lockFailure(err)
	}

	s.logger.InfoContext(ctx, "appointment updated", "appointment_id", id)
	s.notify(ctx, events.AppointmentUpdated, updated)

	if updated.ProviderID != previous.ProviderID {
		if err := s.recountIfCompleted(ctx, updated.StateID, previous.ProviderID, updated.ProviderID); err != nil {
			return updated, apperr.Partial("recount_consultations", updated, err)
		}
	}
	return updated, nil
}

func (s *Service) validatePatch(patch Patch, merged domain.Appointment) error {
	if err := validateFields(merged); err != nil {
		return err
	}
	if patch.Date != nil && merged.Date.Before(s.today()) {
		return apperr.Validation("past_date", "date %s is in the past", domain.FormatDate(merged.Date))
	}
	return nil
}

// maxRescheduleAttempts bounds how often reschedule chases an appointment
// that keeps moving to another day while it waits for the lock.
const maxRescheduleAttempts = 3

var errDayChanged = errors.New("appointment moved to another day")

// reschedule writes a slot-touching patch under the lock of the day the
// appointment lands on. It returns the appointment as it was before the
// write and after it.
func (s *Service) reschedule(ctx context.Context, id uuid.UUID, patch Patch, current domain.Appointment) (domain.Appointment, domain.Appointment, error) {
	var previous, updated domain.Appointment
	for attempt := 0; attempt < maxRescheduleAttempts; attempt++ {
		target := patch.apply(current)
		key := SlotLockKey(target.ProviderID, target.Date)
		err := s.locker.WithLock(ctx, key, func(lockCtx context.Context) error {
			latest, err := s.repo.get(lockCtx, id)
			if err != nil {
				return err
			}
			merged := patch.apply(latest)
			if SlotLockKey(merged.ProviderID, merged.Date) != key {
				current = latest
				return errDayChanged
			}
			if err := s.validatePatch(patch, merged); err != nil {
				return err
			}
			holds, err := s.holdsSlot(lockCtx, latest.StateID)
			if err != nil {
				return err
			}
			if holds {
				if err := s.ensureFree(lockCtx, merged); err != nil {
					return err
				}
			}
			previous = latest
			updated, err = s.repo.update(lockCtx, id, patch.record(merged))
			return err
		})
		if !errors.Is(err, errDayChanged) {
			return previous, updated, err
		}
	}
	return domain.Appointment{}, domain.Appointment{}, apperr.Conflict("concurrent_update",
		"appointment %s kept moving while it was being rescheduled", id)
}

func (s *Service) holdsSlot(ctx context.Context, stateID uuid.UUID) (bool, error) {
	st, err := s.registry.GetState(ctx, stateID)
	if apperr.Is(err, apperr.KindNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return !st.ReleasesSlot, nil
}

// Transition moves the appointment to stateID. Leaving a slot-holding state
// never conflicts; returning to one from a released state re-checks the
// interval.
func (s *Service) Transition(ctx context.Context, id, stateID uuid.UUID) (domain.Appointment, error) {
	current, err := s.repo.get(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}
	target, err := s.registry.GetState(ctx, stateID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if !target.Active {
		return domain.Appointment{}, apperr.Validation("state_inactive", "lifecycle state %s is not active", target.Code)
	}
	if current.StateID == target.ID {
		return current, nil
	}

	from, err := s.registry.GetState(ctx, current.StateID)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return domain.Appointment{}, err
	}

	var updated domain.Appointment
	write := func(ctx context.Context) error {
		var err error
		updated, err = s.repo.update(ctx, id, store.Record{domain.FieldStateID: target.ID.String()})
		return err
	}

	if from.ReleasesSlot && !target.ReleasesSlot {
		err = s.reactivate(ctx, id, current, write)
	} else {
		err = write(ctx)
	}
	if err != nil {
		return domain.Appointment{}, lockFailure(err)
	}

	s.logger.InfoContext(ctx, "appointment transitioned",
		"appointment_id", id, "from", from.Code, "to", target.Code)
	eventType := events.AppointmentTransitioned
	if target.Code == domain.StateCancelled {
		eventType = events.AppointmentCancelled
	}
	s.notify(ctx, eventType, updated)

	if from.Code == domain.StateCompleted || target.Code == domain.StateCompleted {
		if err := s.RecountConsultations(ctx, updated.ProviderID); err != nil {
			return updated, apperr.Partial("recount_consultations", updated, err)
		}
	}
	return updated, nil
}

// reactivate re-checks the interval of an appointment returning to a
// slot-holding state. The interval is re-read under the lock so that a
// reschedule committed meanwhile is what gets checked.
func (s *Service) reactivate(ctx context.Context, id uuid.UUID, current domain.Appointment, write func(context.Context) error) error {
	for attempt := 0; attempt < maxRescheduleAttempts; attempt++ {
		key := SlotLockKey(current.ProviderID, current.Date)
		err := s.locker.WithLock(ctx, key, func(lockCtx context.Context) error {
			latest, err := s.repo.get(lockCtx, id)
			if err != nil {
				return err
			}
			if SlotLockKey(latest.ProviderID, latest.Date) != key {
				current = latest
				return errDayChanged
			}
			if err := s.ensureFree(lockCtx, latest); err != nil {
				return err
			}
			return write(lockCtx)
		})
		if !errors.Is(err, errDayChanged) {
			return err
		}
	}
	return apperr.Conflict("concurrent_update", "appointment %s kept moving while it was being reactivated", id)
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	cancelled, err := s.registry.StateByCode(ctx, domain.StateCancelled)
	if err != nil {
		return domain.Appointment{}, err
	}
	return s.Transition(ctx, id, cancelled.ID)
}

// MarkPaid is idempotent: an already paid appointment is returned unchanged.
func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	current, err := s.repo.get(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}
	if current.Paid {
		return current, nil
	}
	updated, err := s.repo.update(ctx, id, store.Record{domain.FieldPaid: true})
	if err != nil {
		return domain.Appointment{}, err
	}
	s.notify(ctx, events.AppointmentPaid, updated)
	return updated, nil
}

// Delete removes the appointment. Ratings that reference it are left alone.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	current, err := s.repo.get(ctx, id)
	if err != nil {
		return err
	}
	ok, err := s.store.Delete(ctx, store.EntityAppointment, id.String())
	if err != nil {
		return apperr.FromStore(err, "appointment")
	}
	if !ok {
		return apperr.NotFound("appointment_not_found", "appointment %s not found", id)
	}

	s.logger.InfoContext(ctx, "appointment deleted", "appointment_id", id)
	s.notify(ctx, events.AppointmentDeleted, current)

	if err := s.recountIfCompleted(ctx, current.StateID, current.ProviderID); err != nil {
		return apperr.Partial("recount_consultations", current, err)
	}
	return nil
}

func (s *Service) recountIfCompleted(ctx context.Context, stateID uuid.UUID, providers ...uuid.UUID) error {
	completed, err := s.registry.StateByCode(ctx, domain.StateCompleted)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if stateID != completed.ID {
		return nil
	}
	for _, p := range providers {
		if err := s.RecountConsultations(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecountConsultations sets the provider's total consultations to the number
// of its completed appointments.
func (s *Service) RecountConsultations(ctx context.Context, providerID uuid.UUID) error {
	completed, err := s.registry.StateByCode(ctx, domain.StateCompleted)
	if err != nil {
		return err
	}
	err = s.locker.WithLock(ctx, "consultations:"+providerID.String(), func(ctx context.Context) error {
		appts, err := s.repo.byField(ctx, domain.FieldProviderID, providerID.String())
		if err != nil {
			return err
		}
		n := 0
		for _, a := range appts {
			if a.StateID == completed.ID {
				n++
			}
		}
		_, err = s.store.Update(ctx, store.EntityProvider, providerID.String(), store.Record{domain.FieldConsultations: n})
		return apperr.FromStore(err, "provider")
	})
	return lockFailure(err)
}

func (s *Service) notify(ctx context.Context, eventType string, a domain.Appointment) {
	s.notifier.Notify(ctx, events.New(eventType, a.ID, map[string]any{
		"provider_id": a.ProviderID.String(),
		"subject_id":  a.SubjectID.String(),
		"date":        domain.FormatDate(a.Date),
		"start":       a.Start.String(),
		"end":         a.End.String(),
		"state_id":    a.StateID.String(),
		"paid":        a.Paid,
	}))
}
