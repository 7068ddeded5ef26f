package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-scheduling/internal/domain"
)

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// PartialFailureResponse carries the committed resource of an operation whose
// follow-up step failed.
type PartialFailureResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details"`
	Operation string `json:"operation"`
	Result    any    `json:"result,omitempty"`
}

// Appointments

type CreateAppointmentRequest struct {
	ProviderID      string           `json:"provider_id" validate:"required,uuid"`
	SubjectID       string           `json:"subject_id" validate:"required,uuid"`
	RoomID          *string          `json:"room_id" validate:"omitempty,uuid"`
	Date            string           `json:"date" validate:"required,datetime=2006-01-02"`
	Start           string           `json:"start" validate:"required"`
	End             string           `json:"end" validate:"required"`
	StateID         *string          `json:"state_id" validate:"omitempty,uuid"`
	Price           *decimal.Decimal `json:"price"`
	DurationMinutes int              `json:"duration_minutes" validate:"gte=0"`
	Reason          string           `json:"reason" validate:"max=1000"`
	Notes           string           `json:"notes" validate:"max=1000"`
	Diagnosis       string           `json:"diagnosis" validate:"max=1000"`
	Treatment       string           `json:"treatment" validate:"max=1000"`
	Prescriptions   string           `json:"prescriptions" validate:"max=1000"`
}

type UpdateAppointmentRequest struct {
	ProviderID      *string          `json:"provider_id" validate:"omitempty,uuid"`
	SubjectID       *string          `json:"subject_id" validate:"omitempty,uuid"`
	RoomID          *string          `json:"room_id" validate:"omitempty,uuid"`
	ClearRoom       bool             `json:"clear_room"`
	Date            *string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Start           *string          `json:"start"`
	End             *string          `json:"end"`
	Price           *decimal.Decimal `json:"price"`
	ClearPrice      bool             `json:"clear_price"`
	DurationMinutes *int             `json:"duration_minutes" validate:"omitempty,gte=0"`
	ReminderSent    *bool            `json:"reminder_sent"`
	Reason          *string          `json:"reason" validate:"omitempty,max=1000"`
	Notes           *string          `json:"notes" validate:"omitempty,max=1000"`
	Diagnosis       *string          `json:"diagnosis" validate:"omitempty,max=1000"`
	Treatment       *string          `json:"treatment" validate:"omitempty,max=1000"`
	Prescriptions   *string          `json:"prescriptions" validate:"omitempty,max=1000"`
}

type TransitionRequest struct {
	StateID string `json:"state_id" validate:"required,uuid"`
}

type AppointmentResponse struct {
	ID              uuid.UUID  `json:"id"`
	ProviderID      uuid.UUID  `json:"provider_id"`
	SubjectID       uuid.UUID  `json:"subject_id"`
	RoomID          *uuid.UUID `json:"room_id,omitempty"`
	Date            string     `json:"date"`
	Start           string     `json:"start"`
	End             string     `json:"end"`
	DurationMinutes int        `json:"duration_minutes"`
	StateID         uuid.UUID  `json:"state_id"`
	Paid            bool       `json:"paid"`
	Price           *string    `json:"price,omitempty"`
	ReminderSent    bool       `json:"reminder_sent"`
	Reason          string     `json:"reason,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	Diagnosis       string     `json:"diagnosis,omitempty"`
	Treatment       string     `json:"treatment,omitempty"`
	Prescriptions   string     `json:"prescriptions,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func newAppointmentResponse(a domain.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:              a.ID,
		ProviderID:      a.ProviderID,
		SubjectID:       a.SubjectID,
		RoomID:          a.RoomID,
		Date:            domain.FormatDate(a.Date),
		Start:           a.Start.String(),
		End:             a.End.String(),
		DurationMinutes: a.DurationMinutes,
		StateID:         a.StateID,
		Paid:            a.Paid,
		ReminderSent:    a.ReminderSent,
		Reason:          a.Reason,
		Notes:           a.Notes,
		Diagnosis:       a.Diagnosis,
		Treatment:       a.Treatment,
		Prescriptions:   a.Prescriptions,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
	if a.Price != nil {
		p := a.Price.StringFixed(2)
		resp.Price = &p
	}
	return resp
}

func newAppointmentList(appts []domain.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, newAppointmentResponse(a))
	}
	return out
}

type EventResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

type SlotResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type FreeSlotsResponse struct {
	ProviderID uuid.UUID      `json:"provider_id"`
	Date       string         `json:"date"`
	Slots      []SlotResponse `json:"slots"`
}

// Providers, subjects, rooms, states

type CreateProviderRequest struct {
	Name          string `json:"name" validate:"required,max=200"`
	LicenseNumber string `json:"license_number" validate:"required,min=5,max=50"`
	Specialty     string `json:"specialty" validate:"max=100"`
	Available     *bool  `json:"available"`
}

type UpdateProviderRequest struct {
	Name          *string `json:"name" validate:"omitempty,max=200"`
	LicenseNumber *string `json:"license_number" validate:"omitempty,min=5,max=50"`
	Specialty     *string `json:"specialty" validate:"omitempty,max=100"`
}

type SetAvailabilityRequest struct {
	Available *bool `json:"available" validate:"required"`
}

type SetStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active suspended retired"`
}

type ProviderResponse struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	LicenseNumber      string    `json:"license_number"`
	Specialty          string    `json:"specialty,omitempty"`
	Available          bool      `json:"available"`
	Status             string    `json:"status"`
	AverageRating      float64   `json:"average_rating"`
	TotalConsultations int       `json:"total_consultations"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func newProviderResponse(p domain.Provider) ProviderResponse {
	return ProviderResponse{
		ID:                 p.ID,
		Name:               p.Name,
		LicenseNumber:      p.LicenseNumber,
		Specialty:          p.Specialty,
		Available:          p.Available,
		Status:             string(p.Status),
		AverageRating:      p.AverageRating,
		TotalConsultations: p.TotalConsultations,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

type CreateSubjectRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"omitempty,email"`
}

type SubjectResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateRoomRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Location string `json:"location" validate:"max=200"`
	Capacity int    `json:"capacity" validate:"omitempty,min=1,max=10"`
}

type SetRoomActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type RoomResponse struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Location string    `json:"location,omitempty"`
	Capacity int       `json:"capacity"`
	Active   bool      `json:"active"`
}

type CreateStateRequest struct {
	Code         string `json:"code" validate:"required,max=50"`
	Name         string `json:"name" validate:"required,max=100"`
	Description  string `json:"description" validate:"max=500"`
	Color        string `json:"color" validate:"omitempty,len=7,hexcolor"`
	Order        int    `json:"order" validate:"gte=0"`
	ReleasesSlot bool   `json:"releases_slot"`
}

type StateResponse struct {
	ID           uuid.UUID `json:"id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Color        string    `json:"color"`
	Order        int       `json:"order"`
	Active       bool      `json:"active"`
	ReleasesSlot bool      `json:"releases_slot"`
}

func newStateResponse(s domain.LifecycleState) StateResponse {
	return StateResponse{
		ID:           s.ID,
		Code:         s.Code,
		Name:         s.Name,
		Description:  s.Description,
		Color:        s.Color,
		Order:        s.Order,
		Active:       s.Active,
		ReleasesSlot: s.ReleasesSlot,
	}
}

// Ratings

type SubmitRatingRequest struct {
	AppointmentID string `json:"appointment_id" validate:"required,uuid"`
	SubjectID     string `json:"subject_id" validate:"required,uuid"`
	ProviderID    string `json:"provider_id" validate:"required,uuid"`
	Score         int    `json:"score" validate:"required,min=1,max=5"`
	Comment       string `json:"comment" validate:"max=1000"`
}

type UpdateRatingRequest struct {
	Score   *int    `json:"score" validate:"omitempty,min=1,max=5"`
	Comment *string `json:"comment" validate:"omitempty,max=1000"`
}

type RatingResponse struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	SubjectID     uuid.UUID `json:"subject_id"`
	ProviderID    uuid.UUID `json:"provider_id"`
	Score         int       `json:"score"`
	Comment       string    `json:"comment,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func newRatingResponse(r domain.Rating) RatingResponse {
	return RatingResponse{
		ID:            r.ID,
		AppointmentID: r.AppointmentID,
		SubjectID:     r.SubjectID,
		ProviderID:    r.ProviderID,
		Score:         r.Score,
		Comment:       r.Comment,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

type RecomputeResponse struct {
	ProviderID    uuid.UUID `json:"provider_id"`
	AverageRating float64   `json:"average_rating"`
}
