package registry

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

var (
	colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
	codePattern  = regexp.MustCompile(`^[a-z][a-z0-9_]{1,49}$`)
)

type NewState struct {
	Code         string
	Name         string
	Description  string
	Color        string
	Order        int
	ReleasesSlot bool
}

// DefaultStates is the set installed by SeedDefaultStates.
var DefaultStates = []NewState{
	{Code: domain.StateScheduled, Name: "Scheduled", Description: "Appointment booked", Color: "#3B82F6", Order: 1},
	{Code: domain.StateInProgress, Name: "In Progress", Description: "Consultation under way", Color: "#F59E0B", Order: 2},
	{Code: domain.StateCompleted, Name: "Completed", Description: "Consultation finished", Color: "#10B981", Order: 3},
	{Code: domain.StateCancelled, Name: "Cancelled", Description: "Appointment cancelled", Color: "#EF4444", Order: 4, ReleasesSlot: true},
	{Code: domain.StateNoShow, Name: "No Show", Description: "Subject did not attend", Color: "#6B7280", Order: 5, ReleasesSlot: true},
}

func (s *Service) CreateState(ctx context.Context, in NewState) (domain.LifecycleState, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if !codePattern.MatchString(in.Code) {
		return domain.LifecycleState{}, apperr.Validation("invalid_code", "state code must be lower snake case")
	}
	if in.Name == "" {
		return domain.LifecycleState{}, apperr.Validation("invalid_name", "state name is required")
	}
	if in.Color == "" {
		in.Color = domain.DefaultStateColor
	}
	if !colorPattern.MatchString(in.Color) {
		return domain.LifecycleState{}, apperr.Validation("invalid_color", "color must look like #RRGGBB")
	}
	if in.Order < 0 {
		return domain.LifecycleState{}, apperr.Validation("invalid_order", "order must not be negative")
	}

	st := domain.LifecycleState{
		ID:           uuid.New(),
		Code:         in.Code,
		Name:         in.Name,
		Description:  in.Description,
		Color:        in.Color,
		Order:        in.Order,
		Active:       true,
		ReleasesSlot: in.ReleasesSlot,
	}

	var created domain.LifecycleState
	err := s.withUnique(ctx, store.EntityLifecycleState, domain.FieldCode, st.Code, "", func(ctx context.Context) error {
		rec, err := s.store.Create(ctx, store.EntityLifecycleState, domain.StateRecord(st))
		if err != nil {
			return apperr.FromStore(err, "lifecycle_state")
		}
		created, err = domain.StateFromRecord(rec)
		return err
	})
	if err != nil {
		return domain.LifecycleState{}, err
	}
	return created, nil
}

func (s *Service) GetState(ctx context.Context, id uuid.UUID) (domain.LifecycleState, error) {
	rec, err := s.store.GetByID(ctx, store.EntityLifecycleState, id.String())
	if err != nil {
		return domain.LifecycleState{}, apperr.FromStore(err, "lifecycle_state")
	}
	st, err := domain.StateFromRecord(rec)
	if err != nil {
		return domain.LifecycleState{}, apperr.Internal("corrupt_lifecycle_state", err)
	}
	return st, nil
}

func (s *Service) StateByCode(ctx context.Context, code string) (domain.LifecycleState, error) {
	recs, err := s.store.QueryByField(ctx, store.EntityLifecycleState, domain.FieldCode, code)
	if err != nil {
		return domain.LifecycleState{}, apperr.FromStore(err, "lifecycle_state")
	}
	if len(recs) == 0 {
		return domain.LifecycleState{}, apperr.NotFound("lifecycle_state_not_found", "lifecycle state %q not found", code)
	}
	st, err := domain.StateFromRecord(recs[0])
	if err != nil {
		return domain.LifecycleState{}, apperr.Internal("corrupt_lifecycle_state", err)
	}
	return st, nil
}

// ListStates returns every state ordered by display order.
func (s *Service) ListStates(ctx context.Context) ([]domain.LifecycleState, error) {
	recs, err := s.store.List(ctx, store.EntityLifecycleState, 0, 0)
	if err != nil {
		return nil, apperr.FromStore(err, "lifecycle_state")
	}
	out := make([]domain.LifecycleState, 0, len(recs))
	for _, rec := range recs {
		st, err := domain.StateFromRecord(rec)
		if err != nil {
			return nil, apperr.Internal("corrupt_lifecycle_state", err)
		}
		out = append(out, st)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

// SeedDefaultStates installs any missing default state. Existing states are
// left untouched, so running it again changes nothing.
func (s *Service) SeedDefaultStates(ctx context.Context) ([]domain.LifecycleState, error) {
	out := make([]domain.LifecycleState, 0, len(DefaultStates))
	for _, def := range DefaultStates {
		st, err := s.StateByCode(ctx, def.Code)
		if apperr.Is(err, apperr.KindNotFound) {
			st, err = s.CreateState(ctx, def)
			// Another seeder may have won the race.
			if apperr.Is(err, apperr.KindConflict) {
				st, err = s.StateByCode(ctx, def.Code)
			}
		}
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *Service) SlotReleasingStates(ctx context.Context) (map[uuid.UUID]bool, error) {
	recs, err := s.store.QueryByField(ctx, store.EntityLifecycleState, domain.FieldReleasesSlot, true)
	if err != nil {
		return nil, apperr.FromStore(err, "lifecycle_state")
	}
	out := make(map[uuid.UUID]bool, len(recs))
	for _, rec := range recs {
		id, err := rec.UUID(store.FieldID)
		if err != nil {
			return nil, apperr.Internal("corrupt_lifecycle_state", err)
		}
		out[id] = true
	}
	return out, nil
}
