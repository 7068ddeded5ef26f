package appointment

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

const maxRangeDays = 366

func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return s.repo.get(ctx, id)
}

// List pages through all appointments in creation order.
func (s *Service) List(ctx context.Context, offset, limit int) ([]domain.Appointment, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	recs, err := s.store.List(ctx, store.EntityAppointment, offset, limit)
	if err != nil {
		return nil, apperr.FromStore(err, "appointment")
	}
	return decodeAll(recs)
}

// ListForProviderDay returns the provider's appointments on date ordered by
// start time, including cancelled ones.
func (s *Service) ListForProviderDay(ctx context.Context, providerID uuid.UUID, date time.Time) ([]domain.Appointment, error) {
	appts, err := s.repo.byField(ctx, domain.FieldSlotKey, domain.SlotKey(providerID, domain.FormatDate(date)))
	if err != nil {
		return nil, err
	}
	sortChronologically(appts)
	return appts, nil
}

func (s *Service) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]domain.Appointment, error) {
	appts, err := s.repo.byField(ctx, domain.FieldProviderID, providerID.String())
	if err != nil {
		return nil, err
	}
	sortChronologically(appts)
	return appts, nil
}

func (s *Service) ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]domain.Appointment, error) {
	appts, err := s.repo.byField(ctx, domain.FieldSubjectID, subjectID.String())
	if err != nil {
		return nil, err
	}
	sortChronologically(appts)
	return appts, nil
}

// ListInDateRange returns appointments dated within [from, to].
func (s *Service) ListInDateRange(ctx context.Context, from, to time.Time) ([]domain.Appointment, error) {
	from, to = domain.DateOf(from), domain.DateOf(to)
	if to.Before(from) {
		return nil, apperr.Validation("invalid_range", "range end %s is before start %s",
			domain.FormatDate(to), domain.FormatDate(from))
	}
	if to.Sub(from) > maxRangeDays*24*time.Hour {
		return nil, apperr.Validation("invalid_range", "range may span at most %d days", maxRangeDays)
	}
	appts, err := s.repo.inDateRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	sortChronologically(appts)
	return appts, nil
}

// ListUnpaid returns appointments whose paid flag is not set.
func (s *Service) ListUnpaid(ctx context.Context) ([]domain.Appointment, error) {
	appts, err := s.repo.byField(ctx, domain.FieldPaid, false)
	if err != nil {
		return nil, err
	}
	sortChronologically(appts)
	return appts, nil
}

func sortChronologically(appts []domain.Appointment) {
	sort.SliceStable(appts, func(i, j int) bool {
		if !appts[i].Date.Equal(appts[j].Date) {
			return appts[i].Date.Before(appts[j].Date)
		}
		return appts[i].Start < appts[j].Start
	})
}
