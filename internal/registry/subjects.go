package registry

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

type NewSubject struct {
	Name  string
	Email string
}

func (s *Service) RegisterSubject(ctx context.Context, in NewSubject) (domain.Subject, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Subject{}, apperr.Validation("invalid_name", "subject name is required")
	}
	sub := domain.Subject{ID: uuid.New(), Name: name, Email: strings.TrimSpace(in.Email)}

	rec, err := s.store.Create(ctx, store.EntitySubject, domain.SubjectRecord(sub))
	if err != nil {
		return domain.Subject{}, apperr.FromStore(err, "subject")
	}
	return domain.SubjectFromRecord(rec)
}

func (s *Service) GetSubject(ctx context.Context, id uuid.UUID) (domain.Subject, error) {
	rec, err := s.store.GetByID(ctx, store.EntitySubject, id.String())
	if err != nil {
		return domain.Subject{}, apperr.FromStore(err, "subject")
	}
	sub, err := domain.SubjectFromRecord(rec)
	if err != nil {
		return domain.Subject{}, apperr.Internal("corrupt_subject", err)
	}
	return sub, nil
}

func (s *Service) ListSubjects(ctx context.Context, offset, limit int) ([]domain.Subject, error) {
	offset, limit = page(offset, limit)
	recs, err := s.store.List(ctx, store.EntitySubject, offset, limit)
	if err != nil {
		return nil, apperr.FromStore(err, "subject")
	}
	out := make([]domain.Subject, 0, len(recs))
	for _, rec := range recs {
		sub, err := domain.SubjectFromRecord(rec)
		if err != nil {
			return nil, apperr.Internal("corrupt_subject", err)
		}
		out = append(out, sub)
	}
	return out, nil
}

type NewRoom struct {
	Name     string
	Location string
	Capacity int
}

func (s *Service) RegisterRoom(ctx context.Context, in NewRoom) (domain.Room, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Room{}, apperr.Validation("invalid_name", "room name is required")
	}
	if in.Capacity == 0 {
		in.Capacity = 1
	}
	if in.Capacity < 1 || in.Capacity > 10 {
		return domain.Room{}, apperr.Validation("invalid_capacity", "room capacity must be between 1 and 10")
	}
	room := domain.Room{
		ID:       uuid.New(),
		Name:     name,
		Location: strings.TrimSpace(in.Location),
		Capacity: in.Capacity,
		Active:   true,
	}

	var created domain.Room
	err := s.withUnique(ctx, store.EntityRoom, domain.FieldName, name, "", func(ctx context.Context) error {
		rec, err := s.store.Create(ctx, store.EntityRoom, domain.RoomRecord(room))
		if err != nil {
			return apperr.FromStore(err, "room")
		}
		created, err = domain.RoomFromRecord(rec)
		return err
	})
	if err != nil {
		return domain.Room{}, err
	}
	return created, nil
}

func (s *Service) GetRoom(ctx context.Context, id uuid.UUID) (domain.Room, error) {
	rec, err := s.store.GetByID(ctx, store.EntityRoom, id.String())
	if err != nil {
		return domain.Room{}, apperr.FromStore(err, "room")
	}
	room, err := domain.RoomFromRecord(rec)
	if err != nil {
		return domain.Room{}, apperr.Internal("corrupt_room", err)
	}
	return room, nil
}

func (s *Service) ListRooms(ctx context.Context, offset, limit int) ([]domain.Room, error) {
	offset, limit = page(offset, limit)
	recs, err := s.store.List(ctx, store.EntityRoom, offset, limit)
	if err != nil {
		return nil, apperr.FromStore(err, "room")
	}
	out := make([]domain.Room, 0, len(recs))
	for _, rec := range recs {
		room, err := domain.RoomFromRecord(rec)
		if err != nil {
			return nil, apperr.Internal("corrupt_room", err)
		}
		out = append(out, room)
	}
	return out, nil
}

func (s *Service) SetRoomActive(ctx context.Context, id uuid.UUID, active bool) (domain.Room, error) {
	rec, err := s.store.Update(ctx, store.EntityRoom, id.String(), store.Record{"active": active})
	if err != nil {
		return domain.Room{}, apperr.FromStore(err, "room")
	}
	return domain.RoomFromRecord(rec)
}
