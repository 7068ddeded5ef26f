// Package rating keeps each provider's average rating equal to the mean of
// its ratings, with at most one rating per appointment.
package rating

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/events"
	"github.com/hackgods/clinic-scheduling/internal/lock"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

const (
	MinScore         = 1
	MaxScore         = 5
	maxCommentLength = 1000
)

type Registry interface {
	GetProvider(ctx context.Context, id uuid.UUID) (domain.Provider, error)
	GetSubject(ctx context.Context, id uuid.UUID) (domain.Subject, error)
}

// Appointments is satisfied by *appointment.Service.
type Appointments interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
}

type SubmitRequest struct {
	AppointmentID uuid.UUID
	SubjectID     uuid.UUID
	ProviderID    uuid.UUID
	Score         int
	Comment       string
}

type UpdateRequest struct {
	Score   *int
	Comment *string
}

// Service is the only writer of provider average ratings.
type Service struct {
	store        store.Store
	registry     Registry
	appointments Appointments
	locker       lock.Locker
	notifier     events.Notifier
	logger       *slog.Logger
}

func NewService(s store.Store, registry Registry, appointments Appointments, locker lock.Locker, notifier events.Notifier, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = events.Nop{}
	}
	return &Service{
		store:        s,
		registry:     registry,
		appointments: appointments,
		locker:       locker,
		notifier:     notifier,
		logger:       logger.With("component", "rating"),
	}
}

func validateScore(score int) error {
	if score < MinScore || score > MaxScore {
		return apperr.Validation("invalid_score", "score must be between %d and %d", MinScore, MaxScore)
	}
	return nil
}

func validateComment(comment string) error {
	if utf8.RuneCountInString(comment) > maxCommentLength {
		return apperr.Validation("comment_too_long", "comment exceeds %d characters", maxCommentLength)
	}
	return nil
}

func lockFailure(err error) error {
	if errors.Is(err, lock.ErrNotAcquired) {
		return apperr.Infrastructure("lock_unavailable", err)
	}
	return err
}

// Submit records a rating for an appointment and recomputes the provider's
// average. The appointment must belong to the given subject and provider.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (domain.Rating, error) {
	if err := validateScore(req.Score); err != nil {
		return domain.Rating{}, err
	}
	req.Comment = strings.TrimSpace(req.Comment)
	if err := validateComment(req.Comment); err != nil {
		return domain.Rating{}, err
	}

	appt, err := s.appointments.Get(ctx, req.AppointmentID)
	if err != nil {
		return domain.Rating{}, err
	}
	if _, err := s.registry.GetSubject(ctx, req.SubjectID); err != nil {
		return domain.Rating{}, err
	}
	if _, err := s.registry.GetProvider(ctx, req.ProviderID); err != nil {
		return domain.Rating{}, err
	}
	if appt.SubjectID != req.SubjectID || appt.ProviderID != req.ProviderID {
		return domain.Rating{}, apperr.Validation("rating_mismatch",
			"appointment %s does not belong to this subject and provider", appt.ID)
	}

	rating := domain.Rating{
		ID:            uuid.New(),
		AppointmentID: req.AppointmentID,
		SubjectID:     req.SubjectID,
		ProviderID:    req.ProviderID,
		Score:         req.Score,
		Comment:       req.Comment,
	}

	var created domain.Rating
	err = s.locker.WithLock(ctx, "rating:appointment:"+req.AppointmentID.String(), func(ctx context.Context) error {
		existing, err := s.store.QueryByField(ctx, store.EntityRating, domain.FieldAppointmentID, req.AppointmentID.String())
		if err != nil {
			return apperr.FromStore(err, "rating")
		}
		if len(existing) > 0 {
			return apperr.Conflict("duplicate_rating", "appointment %s already has a rating", req.AppointmentID)
		}
		rec, err := s.store.Create(ctx, store.EntityRating, domain.RatingRecord(rating))
		if err != nil {
			return apperr.FromStore(err, "rating")
		}
		created, err = decode(rec)
		return err
	})
	if err != nil {
		return domain.Rating{}, lockFailure(err)
	}

	s.logger.InfoContext(ctx, "rating submitted",
		"rating_id", created.ID, "appointment_id", created.AppointmentID, "provider_id", created.ProviderID)
	s.notify(ctx, events.RatingSubmitted, created)

	if _, err := s.Recompute(ctx, created.ProviderID); err != nil {
		return created, apperr.Partial("recompute_average", created, err)
	}
	return created, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (domain.Rating, error) {
	patch := store.Record{}
	if req.Score != nil {
		if err := validateScore(*req.Score); err != nil {
			return domain.Rating{}, err
		}
		patch["score"] = *req.Score
	}
	if req.Comment != nil {
		comment := strings.TrimSpace(*req.Comment)
		if err := validateComment(comment); err != nil {
			return domain.Rating{}, err
		}
		patch["comment"] = comment
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return domain.Rating{}, err
	}
	if len(patch) == 0 {
		return current, nil
	}

	rec, err := s.store.Update(ctx, store.EntityRating, id.String(), patch)
	if err != nil {
		return domain.Rating{}, apperr.FromStore(err, "rating")
	}
	updated, err := decode(rec)
	if err != nil {
		return domain.Rating{}, err
	}
	s.notify(ctx, events.RatingUpdated, updated)

	if _, err := s.Recompute(ctx, updated.ProviderID); err != nil {
		return updated, apperr.Partial("recompute_average", updated, err)
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	ok, err := s.store.Delete(ctx, store.EntityRating, id.String())
	if err != nil {
		return apperr.FromStore(err, "rating")
	}
	if !ok {
		return apperr.NotFound("rating_not_found", "rating %s not found", id)
	}
	s.notify(ctx, events.RatingDeleted, current)

	if _, err := s.Recompute(ctx, current.ProviderID); err != nil {
		return apperr.Partial("recompute_average", current, err)
	}
	return nil
}

// Recompute sets the provider's average rating to the mean of all its
// ratings, or 0 when it has none. Recomputes for one provider are serialised
// so a stale mean cannot overwrite a newer one.
func (s *Service) Recompute(ctx context.Context, providerID uuid.UUID) (float64, error) {
	var avg float64
	err := s.locker.WithLock(ctx, "rating:provider:"+providerID.String(), func(ctx context.Context) error {
		recs, err := s.store.QueryByField(ctx, store.EntityRating, domain.FieldProviderID, providerID.String())
		if err != nil {
			return apperr.FromStore(err, "rating")
		}
		scores := make([]int, 0, len(recs))
		for _, rec := range recs {
			scores = append(scores, rec.Int("score"))
		}
		avg = Mean(scores)

		_, err = s.store.Update(ctx, store.EntityProvider, providerID.String(), store.Record{domain.FieldAverageRating: avg})
		return apperr.FromStore(err, "provider")
	})
	if err != nil {
		metrics.RatingRecomputes.WithLabelValues("error").Inc()
		return 0, lockFailure(err)
	}
	metrics.RatingRecomputes.WithLabelValues("ok").Inc()
	s.logger.DebugContext(ctx, "provider average recomputed", "provider_id", providerID, "average", avg)
	return avg, nil
}

// Mean is the arithmetic mean of scores, 0 for none. No rounding is applied.
func Mean(scores []int) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return float64(sum) / float64(len(scores))
}

// RecomputeAll reconciles every provider's average. It returns the number of
// providers processed and the first error; later providers are still
// attempted after a failure.
func (s *Service) RecomputeAll(ctx context.Context) (int, error) {
	const pageSize = 100

	var (
		processed int
		firstErr  error
	)
	for offset := 0; ; offset += pageSize {
		recs, err := s.store.List(ctx, store.EntityProvider, offset, pageSize)
		if err != nil {
			return processed, apperr.FromStore(err, "provider")
		}
		for _, rec := range recs {
			id, err := rec.UUID(store.FieldID)
			if err != nil {
				if firstErr == nil {
					firstErr = apperr.Internal("corrupt_provider", err)
				}
				continue
			}
			if _, err := s.Recompute(ctx, id); err != nil {
				s.logger.WarnContext(ctx, "recompute failed", "provider_id", id, "err", err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			processed++
		}
		if len(recs) < pageSize {
			return processed, firstErr
		}
	}
}

func (s *Service) notify(ctx context.Context, eventType string, r domain.Rating) {
	s.notifier.Notify(ctx, events.New(eventType, r.ID, map[string]any{
		"appointment_id": r.AppointmentID.String(),
		"provider_id":    r.ProviderID.String(),
		"subject_id":     r.SubjectID.String(),
		"score":          r.Score,
	}))
}
