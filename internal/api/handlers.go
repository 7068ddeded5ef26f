package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/events"
	"github.com/hackgods/clinic-scheduling/internal/rating"
)

func parseClockField(w http.ResponseWriter, field, value string) (domain.Clock, bool) {
	c, err := domain.ParseClock(value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+field, field+" must be a time of day like 09:30")
		return 0, false
	}
	return c, true
}

func createAppointmentHandler(svc *appointment.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if !rep.decode(w, r, &req) {
			return
		}

		date, err := domain.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must look like 2006-01-02")
			return
		}
		start, ok := parseClockField(w, "start", req.Start)
		if !ok {
			return
		}
		end, ok := parseClockField(w, "end", req.End)
		if !ok {
			return
		}

		appt, err := svc.Create(r.Context(), appointment.CreateRequest{
			ProviderID:      uuid.MustParse(req.ProviderID),
			SubjectID:       uuid.MustParse(req.SubjectID),
			RoomID:          parseUUIDPtr(req.RoomID),
			Date:            date,
			Start:           start,
			End:             end,
			StateID:         parseUUIDPtr(req.StateID),
			Price:           req.Price,
			DurationMinutes: req.DurationMinutes,
			Reason:          req.Reason,
			Notes:           req.Notes,
			Diagnosis:       req.Diagnosis,
			Treatment:       req.Treatment,
			Prescriptions:   req.Prescriptions,
		})
		if err != nil {
			rep.fail(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, newAppointmentResponse(appt))
	}
}

func updateAppointmentHandler(svc *appointment.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		var req UpdateAppointmentRequest
		if !rep.decode(w, r, &req) {
			return
		}

		patch := appointment.Patch{
			ProviderID:      parseUUIDPtr(req.ProviderID),
			SubjectID:       parseUUIDPtr(req.SubjectID),
			RoomID:          parseUUIDPtr(req.RoomID),
			ClearRoom:       req.ClearRoom,
			Price:           req.Price,
			ClearPrice:      req.ClearPrice,
			DurationMinutes: req.DurationMinutes,
			ReminderSent:    req.ReminderSent,
			Reason:          req.Reason,
			Notes:           req.Notes,
			Diagnosis:       req.Diagnosis,
			Treatment:       req.Treatment,
			Prescriptions:   req.Prescriptions,
		}
		if req.Date != nil {
			date, err := domain.ParseDate(*req.Date)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "date must look like 2006-01-02")
				return
			}
			patch.Date = &date
		}
		if req.Start != nil {
			start, ok := parseClockField(w, "start", *req.Start)
			if !ok {
				return
			}
			patch.Start = &start
		}
		if req.End != nil {
			end, ok := parseClockField(w, "end", *req.End)
			if !ok {
				return
			}
			patch.End = &end
		}

		appt, err := svc.Update(r.Context(), id, patch)
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *appointment.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newAppointmentResponse(appt))
	}
}

// listAppointmentsHandler supports ?from=&to= date ranges, ?unpaid=true and
// plain offset/limit paging.
func listAppointmentsHandler(svc *appointment.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var (
			appts []domain.Appointment
			err   error
		)
		switch {
		case q.Get("from") != "" || q.Get("to") != "":
			from, ferr := domain.ParseDate(q.Get("from"))
			to, terr := domain.ParseDate(q.Get("to"))
			if ferr != nil || terr != nil {
				writeError(w, http.StatusBadRequest, "invalid_range", "from and to must both be dates like 2006-01-02")
				return
			}
			appts, err = svc.ListInDateRange(r.Context(), from, to)
		case q.Get("unpaid") == "true":
			appts, err = svc.ListUnpaid(r.Context())
		default:
			offset, limit, perr := pagination(r)
			if perr != nil {
				writeError(w, http.StatusBadRequest, "invalid_pagination", perr.Error())
				return
			}
			appts, err = svc.List(r.Context(), offset, limit)
		}
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newAppointmentList(appts))
	}
}

func transitionAppointmentHandler(svc *appointment.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		var req TransitionRequest
		if !rep.decode(w, r, &req) {
			return
		}
		appt, err := svc.Transition(r.Context(), id, uuid.MustParse(req.StateID))
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *appointment.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		appt, err := svc.Cancel(r.Context(), id)
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newAppointmentResponse(appt))
	}
}

func payAppointmentHandler(svc *appointment.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		appt, err := svc.MarkPaid(r.Context(), id)
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newAppointmentResponse(appt))
	}
}

func deleteAppointmentHandler(svc *appointment.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			rep.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func appointmentRatingHandler(svc *rating.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		rt, err := svc.ForAppointment(r.Context(), id)
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newRatingResponse(rt))
	}
}

func providerAppointmentsHandler(svc *appointment.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		var (
			appts []domain.Appointment
			err   error
		)
		if d := r.URL.Query().Get("date"); d != "" {
			date, perr := domain.ParseDate(d)
			if perr != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "date must look like 2006-01-02")
				return
			}
			appts, err = svc.ListForProviderDay(r.Context(), id, date)
		} else {
			appts, err = svc.ListByProvider(r.Context(), id)
		}
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newAppointmentList(appts))
	}
}

func subjectAppointmentsHandler(svc *appointment.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		appts, err := svc.ListBySubject(r.Context(), id)
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newAppointmentList(appts))
	}
}

// freeSlotsHandler serves GET /providers/{id}/free-slots?date=&start=&end=&slot=
// where slot is in minutes. start, end and slot fall back to the configured
// working day.
func freeSlotsHandler(gen *availability.Generator, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		q := r.URL.Query()
		date, err := domain.ParseDate(q.Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must look like 2006-01-02")
			return
		}

		req := availability.SlotRequest{ProviderID: id, Date: date}
		if q.Get("start") != "" || q.Get("end") != "" {
			start, ok := parseClockField(w, "start", q.Get("start"))
			if !ok {
				return
			}
			end, ok := parseClockField(w, "end", q.Get("end"))
			if !ok {
				return
			}
			req.Window = domain.Interval{Start: start, End: end}
		}
		if s := q.Get("slot"); s != "" {
			minutes, err := strconv.Atoi(s)
			if err != nil || minutes <= 0 {
				writeError(w, http.StatusBadRequest, "invalid_slot_size", "slot must be a positive number of minutes")
				return
			}
			req.SlotSize = time.Duration(minutes) * time.Minute
		}

		slots, err := gen.FreeSlots(r.Context(), req)
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		resp := FreeSlotsResponse{ProviderID: id, Date: domain.FormatDate(date), Slots: make([]SlotResponse, 0, len(slots))}
		for _, s := range slots {
			resp.Slots = append(resp.Slots, SlotResponse{Start: s.Start.String(), End: s.End.String()})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// eventHistoryHandler lists the logged events of one appointment, oldest first.
func eventHistoryHandler(log *events.EventLog, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		recs, err := log.History(r.Context(), id.String())
		if err != nil {
			rep.fail(w, r, apperr.FromStore(err, "event"))
			return
		}
		out := make([]EventResponse, 0, len(recs))
		for _, rec := range recs {
			out = append(out, EventResponse{
				ID:         rec.ID(),
				Type:       rec.String("event_type"),
				OccurredAt: rec.Time("occurred_at"),
				Payload:    rec.Map("payload"),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}
