// Package domain holds the entities shared by the scheduling services and
// their record encodings.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProviderStatus string

const (
	ProviderActive    ProviderStatus = "active"
	ProviderSuspended ProviderStatus = "suspended"
	ProviderRetired   ProviderStatus = "retired"
)

func (s ProviderStatus) Valid() bool {
	switch s {
	case ProviderActive, ProviderSuspended, ProviderRetired:
		return true
	}
	return false
}

// CanTransition reports whether a provider may move from s to next.
// Retired is terminal.
func (s ProviderStatus) CanTransition(next ProviderStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case ProviderActive:
		return next == ProviderSuspended || next == ProviderRetired
	case ProviderSuspended:
		return next == ProviderActive || next == ProviderRetired
	}
	return false
}

// Lifecycle state codes seeded by default.
const (
	StateScheduled  = "scheduled"
	StateInProgress = "in_progress"
	StateCompleted  = "completed"
	StateCancelled  = "cancelled"
	StateNoShow     = "no_show"
)

const DefaultStateColor = "#6B7280"

type Provider struct {
	ID                 uuid.UUID
	Name               string
	LicenseNumber      string
	Specialty          string
	Available          bool
	Status             ProviderStatus
	AverageRating      float64
	TotalConsultations int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Bookable reports whether new appointments may be made with the provider.
func (p Provider) Bookable() bool {
	return p.Available && p.Status == ProviderActive
}

type Subject struct {
	ID        uuid.UUID
	Name      string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Room struct {
	ID        uuid.UUID
	Name      string
	Location  string
	Capacity  int
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type LifecycleState struct {
	ID          uuid.UUID
	Code        string
	Name        string
	Description string
	Color       string
	Order       int
	Active      bool
	// ReleasesSlot states no longer occupy the appointment's interval.
	ReleasesSlot bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Appointment struct {
	ID              uuid.UUID
	ProviderID      uuid.UUID
	SubjectID       uuid.UUID
	RoomID          *uuid.UUID
	Date            time.Time
	Start           Clock
	End             Clock
	DurationMinutes int
	StateID         uuid.UUID
	Paid            bool
	Price           *decimal.Decimal
	ReminderSent    bool

	Reason        string
	Notes         string
	Diagnosis     string
	Treatment     string
	Prescriptions string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a Appointment) Interval() Interval {
	return Interval{Start: a.Start, End: a.End}
}

type Rating struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	SubjectID     uuid.UUID
	ProviderID    uuid.UUID
	Score         int
	Comment       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
