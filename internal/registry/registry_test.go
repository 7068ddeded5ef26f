package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/lock"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/store"
	"github.com/hackgods/clinic-scheduling/internal/store/memory"
)

func newTestService() *Service {
	return NewService(memory.New(), lock.NewLocal(time.Second), logging.Discard())
}

func TestRegisterProvider_Defaults(t *testing.T) {
	svc := newTestService()

	p, err := svc.RegisterProvider(context.Background(), NewProvider{Name: "  Dr. Grey ", LicenseNumber: "LIC-10001", Specialty: "Cardiology"})
	if err != nil {
		t.Fatalf("RegisterProvider error: %v", err)
	}
	if p.Name != "Dr. Grey" {
		t.Fatalf("name = %q, want trimmed", p.Name)
	}
	if !p.Available || p.Status != domain.ProviderActive {
		t.Fatalf("new provider should be available and active, got %+v", p)
	}
	if p.AverageRating != 0 || p.TotalConsultations != 0 {
		t.Fatalf("derived totals should start at zero, got %+v", p)
	}
}

func TestRegisterProvider_Validation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	tests := []struct {
		name string
		in   NewProvider
		code string
	}{
		{"missing name", NewProvider{LicenseNumber: "LIC-10001"}, "invalid_name"},
		{"short license", NewProvider{Name: "Dr. A", LicenseNumber: "L1"}, "invalid_license_number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RegisterProvider(ctx, tt.in)
			if !apperr.Is(err, apperr.KindValidation) || apperr.CodeOf(err) != tt.code {
				t.Fatalf("error = %v (%s), want validation %s", err, apperr.CodeOf(err), tt.code)
			}
		})
	}
}

func TestRegisterProvider_DuplicateLicenseUnderConcurrency(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RegisterProvider(ctx, NewProvider{Name: "Dr. Same", LicenseNumber: "LIC-77777"})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			ok++
		case apperr.Is(err, apperr.KindConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflicts != 7 {
		t.Fatalf("ok=%d conflicts=%d, want 1 and 7", ok, conflicts)
	}
}

func TestUpdateProvider_LicenseUniqueness(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	a, _ := svc.RegisterProvider(ctx, NewProvider{Name: "Dr. A", LicenseNumber: "LIC-AAAAA"})
	_, _ = svc.RegisterProvider(ctx, NewProvider{Name: "Dr. B", LicenseNumber: "LIC-BBBBB"})

	taken := "LIC-BBBBB"
	if _, err := svc.UpdateProvider(ctx, a.ID, ProviderPatch{LicenseNumber: &taken}); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("error = %v, want conflict", err)
	}

	same := "LIC-AAAAA"
	name := "Dr. A. Smith"
	got, err := svc.UpdateProvider(ctx, a.ID, ProviderPatch{LicenseNumber: &same, Name: &name})
	if err != nil {
		t.Fatalf("UpdateProvider error: %v", err)
	}
	if got.Name != name || got.LicenseNumber != same {
		t.Fatalf("unexpected provider %+v", got)
	}
}

func TestSetProviderStatus(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p, _ := svc.RegisterProvider(ctx, NewProvider{Name: "Dr. A", LicenseNumber: "LIC-AAAAA"})

	p, err := svc.SetProviderStatus(ctx, p.ID, domain.ProviderSuspended)
	if err != nil || p.Status != domain.ProviderSuspended {
		t.Fatalf("suspend = %+v, %v", p, err)
	}
	if p.Bookable() {
		t.Fatalf("suspended provider must not be bookable")
	}
	if _, err := svc.SetProviderStatus(ctx, p.ID, domain.ProviderRetired); err != nil {
		t.Fatalf("retire error: %v", err)
	}
	_, err = svc.SetProviderStatus(ctx, p.ID, domain.ProviderActive)
	if !apperr.Is(err, apperr.KindConflict) || apperr.CodeOf(err) != "invalid_status_transition" {
		t.Fatalf("reactivating retired provider: error = %v", err)
	}
	if _, err := svc.SetProviderStatus(ctx, p.ID, "on_holiday"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("unknown status: error = %v", err)
	}
}

func TestGetProvider_NotFound(t *testing.T) {
	svc := newTestService()
	_, err := svc.GetProvider(context.Background(), uuid.New())
	if !apperr.Is(err, apperr.KindNotFound) || apperr.CodeOf(err) != "provider_not_found" {
		t.Fatalf("error = %v, want provider_not_found", err)
	}
}

func TestRegisterRoom(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	room, err := svc.RegisterRoom(ctx, NewRoom{Name: "Room 101"})
	if err != nil {
		t.Fatalf("RegisterRoom error: %v", err)
	}
	if room.Capacity != 1 || !room.Active {
		t.Fatalf("unexpected defaults: %+v", room)
	}
	if _, err := svc.RegisterRoom(ctx, NewRoom{Name: "Room 101"}); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("duplicate room name: error = %v", err)
	}
	if _, err := svc.RegisterRoom(ctx, NewRoom{Name: "Hall", Capacity: 11}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("oversized room: error = %v", err)
	}

	room, err = svc.SetRoomActive(ctx, room.ID, false)
	if err != nil || room.Active {
		t.Fatalf("SetRoomActive = %+v, %v", room, err)
	}
}

func TestSeedDefaultStates_Idempotent(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	first, err := svc.SeedDefaultStates(ctx)
	if err != nil {
		t.Fatalf("first seed error: %v", err)
	}
	second, err := svc.SeedDefaultStates(ctx)
	if err != nil {
		t.Fatalf("second seed error: %v", err)
	}
	if len(first) != len(DefaultStates) || len(second) != len(DefaultStates) {
		t.Fatalf("seeded %d then %d states, want %d", len(first), len(second), len(DefaultStates))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("state %s re-created on second seed", first[i].Code)
		}
	}

	all, _ := svc.ListStates(ctx)
	if len(all) != len(DefaultStates) {
		t.Fatalf("ListStates returned %d, want %d", len(all), len(DefaultStates))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Order < all[i-1].Order {
			t.Fatalf("states not ordered: %v", all)
		}
	}
}

func TestSlotReleasingStates(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	states, _ := svc.SeedDefaultStates(ctx)

	released, err := svc.SlotReleasingStates(ctx)
	if err != nil {
		t.Fatalf("SlotReleasingStates error: %v", err)
	}
	for _, st := range states {
		want := st.Code == domain.StateCancelled || st.Code == domain.StateNoShow
		if released[st.ID] != want {
			t.Fatalf("state %s releases=%v, want %v", st.Code, released[st.ID], want)
		}
	}
}

func TestCreateState_Validation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	tests := []struct {
		name string
		in   NewState
		code string
	}{
		{"bad code", NewState{Code: "Rescheduled", Name: "Rescheduled"}, "invalid_code"},
		{"bad color", NewState{Code: "rescheduled", Name: "Rescheduled", Color: "blue"}, "invalid_color"},
		{"negative order", NewState{Code: "rescheduled", Name: "Rescheduled", Order: -1}, "invalid_order"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateState(ctx, tt.in)
			if apperr.CodeOf(err) != tt.code {
				t.Fatalf("code = %s, want %s (err=%v)", apperr.CodeOf(err), tt.code, err)
			}
		})
	}

	st, err := svc.CreateState(ctx, NewState{Code: "rescheduled", Name: "Rescheduled"})
	if err != nil {
		t.Fatalf("CreateState error: %v", err)
	}
	if st.Color != domain.DefaultStateColor {
		t.Fatalf("color = %q, want default", st.Color)
	}
}

func TestProviderQueries(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := NewService(s, lock.NewLocal(time.Second), logging.Discard())

	off := false
	register := func(name, license, specialty string, available *bool, avg float64) domain.Provider {
		t.Helper()
		p, err := svc.RegisterProvider(ctx, NewProvider{Name: name, LicenseNumber: license, Specialty: specialty, Available: available})
		if err != nil {
			t.Fatalf("RegisterProvider(%s) error: %v", name, err)
		}
		if _, err := s.Update(ctx, store.EntityProvider, p.ID.String(), store.Record{domain.FieldAverageRating: avg}); err != nil {
			t.Fatalf("set average error: %v", err)
		}
		return p
	}
	grey := register("Dr. Grey", "LIC-30001", "Cardiology", nil, 4.5)
	yang := register("Dr. Yang", "LIC-30002", "Cardiology", &off, 3.0)
	karev := register("Dr. Karev", "LIC-30003", "Pediatrics", nil, 0)

	ids := func(ps []domain.Provider) []uuid.UUID {
		out := make([]uuid.UUID, 0, len(ps))
		for _, p := range ps {
			out = append(out, p.ID)
		}
		return out
	}
	expect := func(name string, got []domain.Provider, err error, want ...uuid.UUID) {
		t.Helper()
		if err != nil {
			t.Fatalf("%s error: %v", name, err)
		}
		gotIDs := ids(got)
		if len(gotIDs) != len(want) {
			t.Fatalf("%s = %v, want %v", name, gotIDs, want)
		}
		for i := range want {
			if gotIDs[i] != want[i] {
				t.Fatalf("%s = %v, want %v", name, gotIDs, want)
			}
		}
	}

	got, err := svc.ListAvailableProviders(ctx, 0, 10)
	expect("available", got, err, grey.ID, karev.ID)
	got, err = svc.ListAvailableProviders(ctx, 1, 10)
	expect("available page 2", got, err, karev.ID)
	got, err = svc.ListAvailableProviders(ctx, 5, 10)
	expect("available past end", got, err)

	got, err = svc.ListProvidersBySpecialty(ctx, " Cardiology ")
	expect("cardiology", got, err, grey.ID, yang.ID)

	got, err = svc.ListProvidersByMinRating(ctx, 3)
	expect("rating >= 3", got, err, grey.ID, yang.ID)
	got, err = svc.ListProvidersByMinRating(ctx, 0)
	expect("rating >= 0", got, err, grey.ID, yang.ID, karev.ID)

	if _, err := svc.ListProvidersByMinRating(ctx, 6); apperr.CodeOf(err) != "invalid_min_rating" {
		t.Fatalf("min 6: error = %v, want invalid_min_rating", err)
	}
	if _, err := svc.ListProvidersBySpecialty(ctx, "  "); apperr.CodeOf(err) != "invalid_specialty" {
		t.Fatalf("blank specialty: error = %v, want invalid_specialty", err)
	}
}
