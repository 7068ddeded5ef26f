package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/domain"
)

func iv(start, end string) domain.Interval {
	return domain.Interval{Start: domain.MustClock(start), End: domain.MustClock(end)}
}

func TestFreeSlots_SkipsBusyIntervals(t *testing.T) {
	busy := []domain.Interval{iv("09:00", "09:30"), iv("10:00", "10:30")}

	got := FreeSlots(iv("09:00", "11:00"), 30*time.Minute, busy)

	want := []domain.Interval{iv("09:30", "10:00"), iv("10:30", "11:00")}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("slot %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestFreeSlots_PartialOverlapBlocksCandidate(t *testing.T) {
	got := FreeSlots(iv("09:00", "10:00"), 30*time.Minute, []domain.Interval{iv("09:15", "09:45")})
	if len(got) != 0 {
		t.Fatalf("expected no free slots, got %v", got)
	}
}

func TestFreeSlots_DropsTrailingPartialSlot(t *testing.T) {
	got := FreeSlots(iv("09:00", "10:10"), 30*time.Minute, nil)
	if len(got) != 2 || got[1] != iv("09:30", "10:00") {
		t.Fatalf("got %v, want two full slots", got)
	}
}

func TestFreeSlots_EmptyDayTilesWindow(t *testing.T) {
	window := iv("09:00", "17:00")
	got := FreeSlots(window, 30*time.Minute, nil)
	if len(got) != 16 {
		t.Fatalf("got %d slots, want 16", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Start != got[i-1].End {
			t.Fatalf("slots not contiguous at %d: %s then %s", i, got[i-1], got[i])
		}
	}
	if got[0].Start != window.Start || got[len(got)-1].End != window.End {
		t.Fatalf("slots do not cover the window: %v", got)
	}
}

func TestFreeSlots_NeverOverlapBusy(t *testing.T) {
	busy := []domain.Interval{iv("09:10", "09:25"), iv("11:50", "13:05"), iv("16:45", "17:00")}
	for _, size := range []time.Duration{10 * time.Minute, 15 * time.Minute, 30 * time.Minute, time.Hour} {
		for _, s := range FreeSlots(iv("08:00", "18:00"), size, busy) {
			for _, b := range busy {
				if s.Overlaps(b) {
					t.Fatalf("size %s: free slot %s overlaps busy %s", size, s, b)
				}
			}
		}
	}
}

type fakeBusy struct {
	busyFn func(ctx context.Context, providerID uuid.UUID, date time.Time, excludeID uuid.UUID) ([]domain.Interval, error)
}

func (f *fakeBusy) Busy(ctx context.Context, providerID uuid.UUID, date time.Time, excludeID uuid.UUID) ([]domain.Interval, error) {
	if f.busyFn == nil {
		panic("Busy not configured")
	}
	return f.busyFn(ctx, providerID, date, excludeID)
}

type fakeProviders struct {
	getFn func(ctx context.Context, id uuid.UUID) (domain.Provider, error)
}

func (f *fakeProviders) GetProvider(ctx context.Context, id uuid.UUID) (domain.Provider, error) {
	if f.getFn == nil {
		panic("GetProvider not configured")
	}
	return f.getFn(ctx, id)
}

func knownProviders() *fakeProviders {
	return &fakeProviders{getFn: func(ctx context.Context, id uuid.UUID) (domain.Provider, error) {
		return domain.Provider{ID: id}, nil
	}}
}

func TestGenerator_UsesDefaultsAndOverrides(t *testing.T) {
	gen := NewGenerator(knownProviders(), &fakeBusy{
		busyFn: func(ctx context.Context, providerID uuid.UUID, date time.Time, excludeID uuid.UUID) ([]domain.Interval, error) {
			return []domain.Interval{iv("09:00", "12:00")}, nil
		},
	}, iv("09:00", "13:00"), time.Hour)

	got, err := gen.FreeSlots(context.Background(), SlotRequest{ProviderID: uuid.New()})
	if err != nil {
		t.Fatalf("FreeSlots error: %v", err)
	}
	if len(got) != 1 || got[0] != iv("12:00", "13:00") {
		t.Fatalf("default request got %v", got)
	}

	got, err = gen.FreeSlots(context.Background(), SlotRequest{ProviderID: uuid.New(), Window: iv("11:00", "13:00"), SlotSize: 30 * time.Minute})
	if err != nil {
		t.Fatalf("FreeSlots error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("override request got %v", got)
	}
}

func TestGenerator_RejectsBadRequests(t *testing.T) {
	gen := NewGenerator(knownProviders(), &fakeBusy{}, DefaultWindow, DefaultSlotSize)

	_, err := gen.FreeSlots(context.Background(), SlotRequest{Window: iv("12:00", "11:00")})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("reversed window: error = %v, want validation", err)
	}
	_, err = gen.FreeSlots(context.Background(), SlotRequest{SlotSize: 90 * time.Second})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("fractional slot: error = %v, want validation", err)
	}
}

func TestGenerator_PropagatesLoadErrors(t *testing.T) {
	boom := apperr.Infrastructure("store_unavailable", errors.New("down"))
	gen := NewGenerator(knownProviders(), &fakeBusy{
		busyFn: func(ctx context.Context, providerID uuid.UUID, date time.Time, excludeID uuid.UUID) ([]domain.Interval, error) {
			return nil, boom
		},
	}, DefaultWindow, DefaultSlotSize)

	if _, err := gen.FreeSlots(context.Background(), SlotRequest{}); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
}

func TestGenerator_UnknownProviderIsNotFound(t *testing.T) {
	gen := NewGenerator(&fakeProviders{
		getFn: func(ctx context.Context, id uuid.UUID) (domain.Provider, error) {
			return domain.Provider{}, apperr.NotFound("provider_not_found", "provider %s not found", id)
		},
	}, &fakeBusy{}, DefaultWindow, DefaultSlotSize)

	got, err := gen.FreeSlots(context.Background(), SlotRequest{ProviderID: uuid.New()})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
	if got != nil {
		t.Fatalf("slots = %v, want none", got)
	}
}

func TestGenerator_UnavailableProviderStillListsSlots(t *testing.T) {
	gen := NewGenerator(&fakeProviders{
		getFn: func(ctx context.Context, id uuid.UUID) (domain.Provider, error) {
			return domain.Provider{ID: id, Available: false}, nil
		},
	}, &fakeBusy{
		busyFn: func(ctx context.Context, providerID uuid.UUID, date time.Time, excludeID uuid.UUID) ([]domain.Interval, error) {
			return nil, nil
		},
	}, iv("09:00", "10:00"), 30*time.Minute)

	got, err := gen.FreeSlots(context.Background(), SlotRequest{ProviderID: uuid.New()})
	if err != nil {
		t.Fatalf("FreeSlots error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("slots = %v, want 2", got)
	}
}
