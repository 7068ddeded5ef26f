// Package registry manages the reference records appointments point at:
// providers, subjects, rooms and lifecycle states.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/lock"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

const maxPageSize = 100

type Service struct {
	store  store.Store
	locker lock.Locker
	logger *slog.Logger
}

func NewService(s store.Store, locker lock.Locker, logger *slog.Logger) *Service {
	return &Service{
		store:  s,
		locker: locker,
		logger: logger.With("component", "registry"),
	}
}

// withUnique runs create while holding a lock on (entity, field, value) after
// checking that no other record already uses value.
func (s *Service) withUnique(ctx context.Context, entity store.EntityType, field, value, selfID string, create func(ctx context.Context) error) error {
	key := string(entity) + ":" + field + ":" + strings.ToLower(value)
	err := s.locker.WithLock(ctx, key, func(ctx context.Context) error {
		existing, err := s.store.QueryByField(ctx, entity, field, value)
		if err != nil {
			return apperr.FromStore(err, string(entity))
		}
		for _, rec := range existing {
			if rec.ID() != selfID {
				return apperr.Conflict("duplicate_"+field, "%s %s %q is already in use", entity, field, value)
			}
		}
		return create(ctx)
	})
	return lockError(err)
}

func lockError(err error) error {
	if errors.Is(err, lock.ErrNotAcquired) {
		return apperr.Infrastructure("lock_unavailable", err)
	}
	return err
}

func page(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return offset, limit
}
