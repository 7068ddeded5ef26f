package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-scheduling/internal/store"
)

func TestProviderStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to ProviderStatus
		want     bool
	}{
		{ProviderActive, ProviderSuspended, true},
		{ProviderSuspended, ProviderActive, true},
		{ProviderActive, ProviderRetired, true},
		{ProviderSuspended, ProviderRetired, true},
		{ProviderRetired, ProviderActive, false},
		{ProviderRetired, ProviderSuspended, false},
		{ProviderRetired, ProviderRetired, true},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Fatalf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestProviderBookable(t *testing.T) {
	p := Provider{Available: true, Status: ProviderActive}
	if !p.Bookable() {
		t.Fatalf("available active provider must be bookable")
	}
	p.Status = ProviderSuspended
	if p.Bookable() {
		t.Fatalf("suspended provider must not be bookable")
	}
	p = Provider{Available: false, Status: ProviderActive}
	if p.Bookable() {
		t.Fatalf("unavailable provider must not be bookable")
	}
}

func TestAppointmentRecord_SlotKeyAndPrice(t *testing.T) {
	date, _ := ParseDate("2026-03-02")
	price := decimal.RequireFromString("49.90")
	a := Appointment{
		ID:         uuid.New(),
		ProviderID: uuid.New(),
		SubjectID:  uuid.New(),
		StateID:    uuid.New(),
		Date:       date,
		Start:      MustClock("09:00"),
		End:        MustClock("09:30"),
		Price:      &price,
	}

	rec := AppointmentRecord(a)
	if got, want := rec.String(FieldSlotKey), SlotKey(a.ProviderID, "2026-03-02"); got != want {
		t.Fatalf("slot_key = %q, want %q", got, want)
	}
	if rec["room_id"] != nil {
		t.Fatalf("room_id should be nil without a room, got %v", rec["room_id"])
	}

	got, err := AppointmentFromRecord(rec)
	if err != nil {
		t.Fatalf("AppointmentFromRecord error: %v", err)
	}
	if got.RoomID != nil {
		t.Fatalf("expected no room, got %v", got.RoomID)
	}
	if got.Price == nil || !got.Price.Equal(price) {
		t.Fatalf("price = %v, want %s", got.Price, price)
	}
	if got.Interval() != a.Interval() {
		t.Fatalf("interval = %s, want %s", got.Interval(), a.Interval())
	}
}

func TestAppointmentFromRecord_ReportsCorruptFields(t *testing.T) {
	rec := store.Record{
		store.FieldID:   uuid.NewString(),
		FieldProviderID: "not-a-uuid",
		FieldDate:       "2026-03-02",
		"start":         "9am",
		"end":           "10:00",
	}
	if _, err := AppointmentFromRecord(rec); err == nil {
		t.Fatalf("expected decode error")
	}
}
