package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-scheduling/internal/store"
)

// Field names used in queries.
const (
	FieldSlotKey       = "slot_key"
	FieldProviderID    = "provider_id"
	FieldSubjectID     = "subject_id"
	FieldAppointmentID = "appointment_id"
	FieldDate          = "date"
	FieldPaid          = "paid"
	FieldStateID       = "state_id"
	FieldLicenseNumber = "license_number"
	FieldName          = "name"
	FieldCode          = "code"
	FieldReleasesSlot  = "releases_slot"
	FieldAverageRating = "average_rating"
	FieldConsultations = "total_consultations"
)

// SlotKey groups the appointments of one provider on one date.
func SlotKey(providerID uuid.UUID, date string) string {
	return providerID.String() + "|" + date
}

func optionalUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func ProviderRecord(p Provider) store.Record {
	return store.Record{
		store.FieldID:      p.ID.String(),
		"name":             p.Name,
		FieldLicenseNumber: p.LicenseNumber,
		"specialty":        p.Specialty,
		"available":        p.Available,
		"status":           string(p.Status),
		FieldAverageRating: p.AverageRating,
		FieldConsultations: p.TotalConsultations,
	}
}

func ProviderFromRecord(r store.Record) (Provider, error) {
	id, err := r.UUID(store.FieldID)
	if err != nil {
		return Provider{}, err
	}
	status := ProviderStatus(r.String("status"))
	if status == "" {
		status = ProviderActive
	}
	return Provider{
		ID:                 id,
		Name:               r.String("name"),
		LicenseNumber:      r.String(FieldLicenseNumber),
		Specialty:          r.String("specialty"),
		Available:          r.Bool("available"),
		Status:             status,
		AverageRating:      r.Float(FieldAverageRating),
		TotalConsultations: r.Int(FieldConsultations),
		CreatedAt:          r.Time(store.FieldCreatedAt),
		UpdatedAt:          r.Time(store.FieldUpdatedAt),
	}, nil
}

func SubjectRecord(s Subject) store.Record {
	return store.Record{
		store.FieldID: s.ID.String(),
		"name":        s.Name,
		"email":       s.Email,
	}
}

func SubjectFromRecord(r store.Record) (Subject, error) {
	id, err := r.UUID(store.FieldID)
	if err != nil {
		return Subject{}, err
	}
	return Subject{
		ID:        id,
		Name:      r.String("name"),
		Email:     r.String("email"),
		CreatedAt: r.Time(store.FieldCreatedAt),
		UpdatedAt: r.Time(store.FieldUpdatedAt),
	}, nil
}

func RoomRecord(rm Room) store.Record {
	return store.Record{
		store.FieldID: rm.ID.String(),
		FieldName:     rm.Name,
		"location":    rm.Location,
		"capacity":    rm.Capacity,
		"active":      rm.Active,
	}
}

func RoomFromRecord(r store.Record) (Room, error) {
	id, err := r.UUID(store.FieldID)
	if err != nil {
		return Room{}, err
	}
	return Room{
		ID:        id,
		Name:      r.String(FieldName),
		Location:  r.String("location"),
		Capacity:  r.Int("capacity"),
		Active:    r.Bool("active"),
		CreatedAt: r.Time(store.FieldCreatedAt),
		UpdatedAt: r.Time(store.FieldUpdatedAt),
	}, nil
}

func StateRecord(s LifecycleState) store.Record {
	return store.Record{
		store.FieldID:     s.ID.String(),
		FieldCode:         s.Code,
		"name":            s.Name,
		"description":     s.Description,
		"color":           s.Color,
		"order":           s.Order,
		"active":          s.Active,
		FieldReleasesSlot: s.ReleasesSlot,
	}
}

func StateFromRecord(r store.Record) (LifecycleState, error) {
	id, err := r.UUID(store.FieldID)
	if err != nil {
		return LifecycleState{}, err
	}
	return LifecycleState{
		ID:           id,
		Code:         r.String(FieldCode),
		Name:         r.String("name"),
		Description:  r.String("description"),
		Color:        r.String("color"),
		Order:        r.Int("order"),
		Active:       r.Bool("active"),
		ReleasesSlot: r.Bool(FieldReleasesSlot),
		CreatedAt:    r.Time(store.FieldCreatedAt),
		UpdatedAt:    r.Time(store.FieldUpdatedAt),
	}, nil
}

func AppointmentRecord(a Appointment) store.Record {
	date := FormatDate(a.Date)
	rec := store.Record{
		store.FieldID:      a.ID.String(),
		FieldProviderID:    a.ProviderID.String(),
		FieldSubjectID:     a.SubjectID.String(),
		"room_id":          optionalUUID(a.RoomID),
		FieldDate:          date,
		"start":            a.Start.String(),
		"end":              a.End.String(),
		FieldSlotKey:       SlotKey(a.ProviderID, date),
		"duration_minutes": a.DurationMinutes,
		FieldStateID:       a.StateID.String(),
		FieldPaid:          a.Paid,
		"price":            nil,
		"reminder_sent":    a.ReminderSent,
		"reason":           a.Reason,
		"notes":            a.Notes,
		"diagnosis":        a.Diagnosis,
		"treatment":        a.Treatment,
		"prescriptions":    a.Prescriptions,
	}
	if a.Price != nil {
		rec["price"] = a.Price.String()
	}
	return rec
}

func AppointmentFromRecord(r store.Record) (Appointment, error) {
	var errs []error
	parse := func(key string) uuid.UUID {
		id, err := r.UUID(key)
		if err != nil {
			errs = append(errs, err)
		}
		return id
	}

	a := Appointment{
		ID:              parse(store.FieldID),
		ProviderID:      parse(FieldProviderID),
		SubjectID:       parse(FieldSubjectID),
		StateID:         parse(FieldStateID),
		DurationMinutes: r.Int("duration_minutes"),
		Paid:            r.Bool(FieldPaid),
		ReminderSent:    r.Bool("reminder_sent"),
		Reason:          r.String("reason"),
		Notes:           r.String("notes"),
		Diagnosis:       r.String("diagnosis"),
		Treatment:       r.String("treatment"),
		Prescriptions:   r.String("prescriptions"),
		CreatedAt:       r.Time(store.FieldCreatedAt),
		UpdatedAt:       r.Time(store.FieldUpdatedAt),
	}
	if room := parse("room_id"); room != uuid.Nil {
		a.RoomID = &room
	}

	date, err := ParseDate(r.String(FieldDate))
	if err != nil {
		errs = append(errs, err)
	}
	a.Date = date
	if a.Start, err = ParseClock(r.String("start")); err != nil {
		errs = append(errs, err)
	}
	if a.End, err = ParseClock(r.String("end")); err != nil {
		errs = append(errs, err)
	}
	if p := r.String("price"); p != "" {
		price, err := decimal.NewFromString(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("price: %w", err))
		} else {
			a.Price = &price
		}
	}

	if err := errors.Join(errs...); err != nil {
		return Appointment{}, fmt.Errorf("decode appointment %s: %w", r.ID(), err)
	}
	return a, nil
}

func RatingRecord(rt Rating) store.Record {
	return store.Record{
		store.FieldID:      rt.ID.String(),
		FieldAppointmentID: rt.AppointmentID.String(),
		FieldSubjectID:     rt.SubjectID.String(),
		FieldProviderID:    rt.ProviderID.String(),
		"score":            rt.Score,
		"comment":          rt.Comment,
	}
}

func RatingFromRecord(r store.Record) (Rating, error) {
	var errs []error
	parse := func(key string) uuid.UUID {
		id, err := r.UUID(key)
		if err != nil {
			errs = append(errs, err)
		}
		return id
	}
	rt := Rating{
		ID:            parse(store.FieldID),
		AppointmentID: parse(FieldAppointmentID),
		SubjectID:     parse(FieldSubjectID),
		ProviderID:    parse(FieldProviderID),
		Score:         r.Int("score"),
		Comment:       r.String("comment"),
		CreatedAt:     r.Time(store.FieldCreatedAt),
		UpdatedAt:     r.Time(store.FieldUpdatedAt),
	}
	if err := errors.Join(errs...); err != nil {
		return Rating{}, fmt.Errorf("decode rating %s: %w", r.ID(), err)
	}
	return rt, nil
}
