package rating

import (
	"context"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

func decode(rec store.Record) (domain.Rating, error) {
	r, err := domain.RatingFromRecord(rec)
	if err != nil {
		return domain.Rating{}, apperr.Internal("corrupt_rating", err)
	}
	return r, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Rating, error) {
	rec, err := s.store.GetByID(ctx, store.EntityRating, id.String())
	if err != nil {
		return domain.Rating{}, apperr.FromStore(err, "rating")
	}
	return decode(rec)
}

// ForAppointment returns the appointment's rating or NotFound.
func (s *Service) ForAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Rating, error) {
	ratings, err := s.byField(ctx, domain.FieldAppointmentID, appointmentID.String())
	if err != nil {
		return domain.Rating{}, err
	}
	if len(ratings) == 0 {
		return domain.Rating{}, apperr.NotFound("rating_not_found", "appointment %s has no rating", appointmentID)
	}
	return ratings[0], nil
}

func (s *Service) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]domain.Rating, error) {
	return s.byField(ctx, domain.FieldProviderID, providerID.String())
}

func (s *Service) ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]domain.Rating, error) {
	return s.byField(ctx, domain.FieldSubjectID, subjectID.String())
}

func (s *Service) byField(ctx context.Context, field, value string) ([]domain.Rating, error) {
	recs, err := s.store.QueryByField(ctx, store.EntityRating, field, value)
	if err != nil {
		return nil, apperr.FromStore(err, "rating")
	}
	out := make([]domain.Rating, 0, len(recs))
	for _, rec := range recs {
		r, err := decode(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
