package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/store"
)

func TestCreateAssignsIDAndTimestamps(t *testing.T) {
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return now }))

	rec, err := s.Create(context.Background(), store.EntitySubject, store.Record{"name": "Ada"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if rec.ID() == "" {
		t.Fatalf("expected an id to be assigned")
	}
	if !rec.Time(store.FieldCreatedAt).Equal(now) {
		t.Fatalf("created_at = %v, want %v", rec.Time(store.FieldCreatedAt), now)
	}
}

func TestCreateRejectsDuplicates(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.Create(ctx, store.EntityProvider, store.Record{store.FieldID: "p1", "license_number": "LIC-001"}); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	_, err := s.Create(ctx, store.EntityProvider, store.Record{store.FieldID: "p1", "license_number": "LIC-002"})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("duplicate id: error = %v, want ErrConflict", err)
	}

	_, err = s.Create(ctx, store.EntityProvider, store.Record{store.FieldID: "p2", "license_number": "LIC-001"})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("duplicate license: error = %v, want ErrConflict", err)
	}
}

func TestUpdateMergesAndKeepsIdentity(t *testing.T) {
	s := New()
	ctx := context.Background()

	rec, _ := s.Create(ctx, store.EntityProvider, store.Record{"name": "Ada", "available": true})
	updated, err := s.Update(ctx, store.EntityProvider, rec.ID(), store.Record{
		"available":          false,
		store.FieldID:        "other",
		store.FieldCreatedAt: "ignored",
	})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if updated.ID() != rec.ID() {
		t.Fatalf("id changed to %q", updated.ID())
	}
	if updated.String("name") != "Ada" || updated.Bool("available") {
		t.Fatalf("unexpected record after update: %v", updated)
	}

	if _, err := s.Update(ctx, store.EntityProvider, "missing", store.Record{"name": "x"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestQueryByFieldMatchesNumbersAcrossTypes(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, _ = s.Create(ctx, store.EntityRating, store.Record{"appointment_id": "a1", "score": 4})
	_, _ = s.Create(ctx, store.EntityRating, store.Record{"appointment_id": "a2", "score": 2})

	got, err := s.QueryByField(ctx, store.EntityRating, "score", 4)
	if err != nil {
		t.Fatalf("QueryByField error: %v", err)
	}
	if len(got) != 1 || got[0].String("appointment_id") != "a1" {
		t.Fatalf("unexpected matches: %v", got)
	}
}

func TestQueryRangeIsInclusive(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, d := range []string{"2026-03-01", "2026-03-02", "2026-03-03", "2026-03-04"} {
		_, _ = s.Create(ctx, store.EntityAppointment, store.Record{"date": d})
	}

	got, err := s.QueryRange(ctx, store.EntityAppointment, "date", "2026-03-02", "2026-03-03")
	if err != nil {
		t.Fatalf("QueryRange error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
}

func TestListPagesInInsertionOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_, _ = s.Create(ctx, store.EntitySubject, store.Record{store.FieldID: id})
	}

	got, _ := s.List(ctx, store.EntitySubject, 1, 1)
	if len(got) != 1 || got[0].ID() != "b" {
		t.Fatalf("page = %v, want [b]", got)
	}
}

func TestDeleteReportsExistence(t *testing.T) {
	s := New()
	ctx := context.Background()
	rec, _ := s.Create(ctx, store.EntityRating, store.Record{"appointment_id": "a1"})

	ok, err := s.Delete(ctx, store.EntityRating, rec.ID())
	if err != nil || !ok {
		t.Fatalf("Delete = %v, %v; want true, nil", ok, err)
	}
	ok, err = s.Delete(ctx, store.EntityRating, rec.ID())
	if err != nil || ok {
		t.Fatalf("second Delete = %v, %v; want false, nil", ok, err)
	}
	// The unique value is free again.
	if _, err := s.Create(ctx, store.EntityRating, store.Record{"appointment_id": "a1"}); err != nil {
		t.Fatalf("Create after delete error: %v", err)
	}
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	rec, _ := s.Create(ctx, store.EntitySubject, store.Record{"name": "Ada"})
	rec["name"] = "changed"

	got, _ := s.GetByID(ctx, store.EntitySubject, rec.ID())
	if got.String("name") != "Ada" {
		t.Fatalf("stored record was mutated: %v", got)
	}
}
