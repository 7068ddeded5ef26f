package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeStore struct {
	createFn       func(ctx context.Context, entity EntityType, fields Record) (Record, error)
	getByIDFn      func(ctx context.Context, entity EntityType, id string) (Record, error)
	listFn         func(ctx context.Context, entity EntityType, offset, limit int) ([]Record, error)
	updateFn       func(ctx context.Context, entity EntityType, id string, patch Record) (Record, error)
	deleteFn       func(ctx context.Context, entity EntityType, id string) (bool, error)
	queryByFieldFn func(ctx context.Context, entity EntityType, field string, value any) ([]Record, error)
	queryRangeFn   func(ctx context.Context, entity EntityType, field string, low, high any) ([]Record, error)
	pingFn         func(ctx context.Context) error
}

func (f *fakeStore) Create(ctx context.Context, entity EntityType, fields Record) (Record, error) {
	if f.createFn == nil {
		panic("Create not configured")
	}
	return f.createFn(ctx, entity, fields)
}

func (f *fakeStore) GetByID(ctx context.Context, entity EntityType, id string) (Record, error) {
	if f.getByIDFn == nil {
		panic("GetByID not configured")
	}
	return f.getByIDFn(ctx, entity, id)
}

func (f *fakeStore) List(ctx context.Context, entity EntityType, offset, limit int) ([]Record, error) {
	if f.listFn == nil {
		panic("List not configured")
	}
	return f.listFn(ctx, entity, offset, limit)
}

func (f *fakeStore) Update(ctx context.Context, entity EntityType, id string, patch Record) (Record, error) {
	if f.updateFn == nil {
		panic("Update not configured")
	}
	return f.updateFn(ctx, entity, id, patch)
}

func (f *fakeStore) Delete(ctx context.Context, entity EntityType, id string) (bool, error) {
	if f.deleteFn == nil {
		panic("Delete not configured")
	}
	return f.deleteFn(ctx, entity, id)
}

func (f *fakeStore) QueryByField(ctx context.Context, entity EntityType, field string, value any) ([]Record, error) {
	if f.queryByFieldFn == nil {
		panic("QueryByField not configured")
	}
	return f.queryByFieldFn(ctx, entity, field, value)
}

func (f *fakeStore) QueryRange(ctx context.Context, entity EntityType, field string, low, high any) ([]Record, error) {
	if f.queryRangeFn == nil {
		panic("QueryRange not configured")
	}
	return f.queryRangeFn(ctx, entity, field, low, high)
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn == nil {
		panic("Ping not configured")
	}
	return f.pingFn(ctx)
}

func testPolicy(retries *int) Policy {
	return Policy{
		Timeout:         50 * time.Millisecond,
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		OnRetry: func(op string, err error, wait time.Duration) {
			if retries != nil {
				*retries++
			}
		},
	}
}

func TestPolicy_RetriesUnavailable(t *testing.T) {
	calls := 0
	fake := &fakeStore{
		getByIDFn: func(ctx context.Context, entity EntityType, id string) (Record, error) {
			calls++
			if calls < 3 {
				return nil, ErrUnavailable
			}
			return Record{FieldID: id}, nil
		},
	}
	retries := 0
	s := WithPolicy(fake, testPolicy(&retries))

	rec, err := s.GetByID(context.Background(), EntityProvider, "p1")
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if rec.ID() != "p1" {
		t.Fatalf("id = %q, want p1", rec.ID())
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if retries != 2 {
		t.Fatalf("retries = %d, want 2", retries)
	}
}

func TestPolicy_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	fake := &fakeStore{
		listFn: func(ctx context.Context, entity EntityType, offset, limit int) ([]Record, error) {
			calls++
			return nil, ErrUnavailable
		},
	}
	s := WithPolicy(fake, testPolicy(nil))

	_, err := s.List(context.Background(), EntityProvider, 0, 10)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestPolicy_DoesNotRetryPermanentErrors(t *testing.T) {
	calls := 0
	fake := &fakeStore{
		getByIDFn: func(ctx context.Context, entity EntityType, id string) (Record, error) {
			calls++
			return nil, ErrNotFound
		},
	}
	s := WithPolicy(fake, testPolicy(nil))

	_, err := s.GetByID(context.Background(), EntityProvider, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestPolicy_PerCallTimeoutIsUnavailable(t *testing.T) {
	fake := &fakeStore{
		pingFn: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	p := testPolicy(nil)
	p.MaxAttempts = 1
	s := WithPolicy(fake, p)

	err := s.Ping(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
}

func TestPolicy_CreateRetryReturnsOwnWrite(t *testing.T) {
	var stored Record
	calls := 0
	fake := &fakeStore{
		createFn: func(ctx context.Context, entity EntityType, fields Record) (Record, error) {
			calls++
			if calls == 1 {
				// The write lands but the response is lost.
				stored = fields.Clone()
				return nil, ErrUnavailable
			}
			return nil, ErrConflict
		},
		getByIDFn: func(ctx context.Context, entity EntityType, id string) (Record, error) {
			if stored == nil || stored.ID() != id {
				return nil, ErrNotFound
			}
			return stored.Clone(), nil
		},
	}
	s := WithPolicy(fake, testPolicy(nil))

	rec, err := s.Create(context.Background(), EntityProvider, Record{"name": "Dr. Ada"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if rec.ID() == "" || rec.ID() != stored.ID() {
		t.Fatalf("expected the earlier write %q, got %q", stored.ID(), rec.ID())
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestPolicy_DeleteRetryReportsEarlierDelete(t *testing.T) {
	present := true
	calls := 0
	fake := &fakeStore{
		deleteFn: func(ctx context.Context, entity EntityType, id string) (bool, error) {
			calls++
			existed := present
			present = false
			if calls == 1 {
				// The row is gone but the response is lost.
				return false, ErrUnavailable
			}
			return existed, nil
		},
	}
	s := WithPolicy(fake, testPolicy(nil))

	deleted, err := s.Delete(context.Background(), EntityAppointment, "a1")
	if err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if !deleted {
		t.Fatalf("a delete committed by an earlier attempt should report deleted")
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestPolicy_FirstAttemptDeleteMissIsNotDeleted(t *testing.T) {
	fake := &fakeStore{
		deleteFn: func(ctx context.Context, entity EntityType, id string) (bool, error) {
			return false, nil
		},
	}
	s := WithPolicy(fake, testPolicy(nil))

	deleted, err := s.Delete(context.Background(), EntityAppointment, "missing")
	if err != nil || deleted {
		t.Fatalf("Delete = %v, %v; want false, nil", deleted, err)
	}
}

func TestPolicy_FirstAttemptConflictIsReturned(t *testing.T) {
	fake := &fakeStore{
		createFn: func(ctx context.Context, entity EntityType, fields Record) (Record, error) {
			return nil, ErrConflict
		},
	}
	s := WithPolicy(fake, testPolicy(nil))

	_, err := s.Create(context.Background(), EntityRating, Record{"appointment_id": "a1"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("error = %v, want ErrConflict", err)
	}
}

func TestPolicy_CancelledCallerIsUnavailable(t *testing.T) {
	fake := &fakeStore{
		queryByFieldFn: func(ctx context.Context, entity EntityType, field string, value any) ([]Record, error) {
			return nil, ctx.Err()
		},
	}
	s := WithPolicy(fake, testPolicy(nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.QueryByField(ctx, EntityAppointment, "slot_key", "x")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
}
