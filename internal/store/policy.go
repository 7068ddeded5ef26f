package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
)

// Policy bounds every store call with a timeout and retries calls that
// failed with ErrUnavailable. Other errors are returned on the first attempt.
type Policy struct {
	Timeout         time.Duration
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// OnRetry is called before each retry.
	OnRetry func(op string, err error, wait time.Duration)
}

func DefaultPolicy() Policy {
	return Policy{
		Timeout:         2 * time.Second,
		MaxAttempts:     3,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
	}
}

type policyStore struct {
	next   Store
	policy Policy
}

// WithPolicy wraps next so that each call honours p.
func WithPolicy(next Store, p Policy) Store {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = 1
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = 50 * time.Millisecond
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = time.Second
	}
	return &policyStore{next: next, policy: p}
}

func run[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context, attempt uint) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval

	var attempt uint
	res, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		callCtx := ctx
		if p.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, p.Timeout)
			defer cancel()
		}

		v, err := fn(callCtx, attempt)
		if err == nil {
			return v, nil
		}
		// A per-call deadline is an outage, the caller's deadline is not.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %s timed out: %v", ErrUnavailable, op, err)
		}
		if !errors.Is(err, ErrUnavailable) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(p.MaxAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			if p.OnRetry != nil {
				p.OnRetry(op, err, wait)
			}
		}),
	)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Unwrap()
		}
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ErrUnavailable) {
			err = fmt.Errorf("%w: %s: %w", ErrUnavailable, op, ctxErr)
		}
	}
	return res, err
}

func (s *policyStore) Create(ctx context.Context, entity EntityType, fields Record) (Record, error) {
	// Assign the id up front so a retried create can recognise its own write.
	fields = fields.Clone()
	id := fields.ID()
	if id == "" {
		id = uuid.NewString()
		fields[FieldID] = id
	}

	return run(ctx, s.policy, "create", func(ctx context.Context, attempt uint) (Record, error) {
		rec, err := s.next.Create(ctx, entity, fields)
		if errors.Is(err, ErrConflict) && attempt > 1 {
			if existing, getErr := s.next.GetByID(ctx, entity, id); getErr == nil {
				return existing, nil
			}
		}
		return rec, err
	})
}

func (s *policyStore) GetByID(ctx context.Context, entity EntityType, id string) (Record, error) {
	return run(ctx, s.policy, "get", func(ctx context.Context, _ uint) (Record, error) {
		return s.next.GetByID(ctx, entity, id)
	})
}

func (s *policyStore) List(ctx context.Context, entity EntityType, offset, limit int) ([]Record, error) {
	return run(ctx, s.policy, "list", func(ctx context.Context, _ uint) ([]Record, error) {
		return s.next.List(ctx, entity, offset, limit)
	})
}

func (s *policyStore) Update(ctx context.Context, entity EntityType, id string, patch Record) (Record, error) {
	return run(ctx, s.policy, "update", func(ctx context.Context, _ uint) (Record, error) {
		return s.next.Update(ctx, entity, id, patch)
	})
}

func (s *policyStore) Delete(ctx context.Context, entity EntityType, id string) (bool, error) {
	var deleted bool
	_, err := run(ctx, s.policy, "delete", func(ctx context.Context, attempt uint) (struct{}, error) {
		ok, err := s.next.Delete(ctx, entity, id)
		// A retry finding nothing means an earlier attempt removed the row
		// and only its response was lost.
		deleted = ok || (err == nil && attempt > 1)
		return struct{}{}, err
	})
	return deleted, err
}

func (s *policyStore) QueryByField(ctx context.Context, entity EntityType, field string, value any) ([]Record, error) {
	return run(ctx, s.policy, "query_by_field", func(ctx context.Context, _ uint) ([]Record, error) {
		return s.next.QueryByField(ctx, entity, field, value)
	})
}

func (s *policyStore) QueryRange(ctx context.Context, entity EntityType, field string, low, high any) ([]Record, error) {
	return run(ctx, s.policy, "query_range", func(ctx context.Context, _ uint) ([]Record, error) {
		return s.next.QueryRange(ctx, entity, field, low, high)
	})
}

func (s *policyStore) Ping(ctx context.Context) error {
	_, err := run(ctx, s.policy, "ping", func(ctx context.Context, _ uint) (struct{}, error) {
		return struct{}{}, s.next.Ping(ctx)
	})
	return err
}
