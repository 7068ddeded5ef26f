package api

import (
	"net/http"
	"strconv"

	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/registry"
)

func createProviderHandler(svc *registry.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateProviderRequest
		if !rep.decode(w, r, &req) {
			return
		}
		p, err := svc.RegisterProvider(r.Context(), registry.NewProvider{
			Name:          req.Name,
			LicenseNumber: req.LicenseNumber,
			Specialty:     req.Specialty,
			Available:     req.Available,
		})
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, newProviderResponse(p))
	}
}

func getProviderHandler(svc *registry.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		p, err := svc.GetProvider(r.Context(), id)
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newProviderResponse(p))
	}
}

// listProvidersHandler pages all providers, or applies one of the
// available, specialty or min_rating filters.
func listProvidersHandler(svc *registry.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filters := 0
		for _, key := range []string{"available", "specialty", "min_rating"} {
			if q.Has(key) {
				filters++
			}
		}
		if filters > 1 {
			writeError(w, http.StatusBadRequest, "conflicting_filters", "use at most one of available, specialty and min_rating")
			return
		}

		var (
			providers []domain.Provider
			err       error
		)
		switch {
		case q.Has("specialty"):
			providers, err = svc.ListProvidersBySpecialty(r.Context(), q.Get("specialty"))
		case q.Has("min_rating"):
			minRating, parseErr := strconv.ParseFloat(q.Get("min_rating"), 64)
			if parseErr != nil {
				writeError(w, http.StatusBadRequest, "invalid_min_rating", "min_rating must be a number")
				return
			}
			providers, err = svc.ListProvidersByMinRating(r.Context(), minRating)
		default:
			offset, limit, pageErr := pagination(r)
			if pageErr != nil {
				writeError(w, http.StatusBadRequest, "invalid_pagination", pageErr.Error())
				return
			}
			available := false
			if q.Has("available") {
				if available, pageErr = strconv.ParseBool(q.Get("available")); pageErr != nil || !available {
					writeError(w, http.StatusBadRequest, "invalid_available", "available only accepts true")
					return
				}
			}
			if available {
				providers, err = svc.ListAvailableProviders(r.Context(), offset, limit)
			} else {
				providers, err = svc.ListProviders(r.Context(), offset, limit)
			}
		}
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		out := make([]ProviderResponse, 0, len(providers))
		for _, p := range providers {
			out = append(out, newProviderResponse(p))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func updateProviderHandler(svc *registry.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		var req UpdateProviderRequest
		if !rep.decode(w, r, &req) {
			return
		}
		p, err := svc.UpdateProvider(r.Context(), id, registry.ProviderPatch{
			Name:          req.Name,
			LicenseNumber: req.LicenseNumber,
			Specialty:     req.Specialty,
		})
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newProviderResponse(p))
	}
}

func setProviderAvailabilityHandler(svc *registry.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		var req SetAvailabilityRequest
		if !rep.decode(w, r, &req) {
			return
		}
		p, err := svc.SetProviderAvailability(r.Context(), id, *req.Available)
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newProviderResponse(p))
	}
}

func setProviderStatusHandler(svc *registry.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		var req SetStatusRequest
		if !rep.decode(w, r, &req) {
			return
		}
		p, err := svc.SetProviderStatus(r.Context(), id, domain.ProviderStatus(req.Status))
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newProviderResponse(p))
	}
}

func createSubjectHandler(svc *registry.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSubjectRequest
		if !rep.decode(w, r, &req) {
			return
		}
		s, err := svc.RegisterSubject(r.Context(), registry.NewSubject{Name: req.Name, Email: req.Email})
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, SubjectResponse{ID: s.ID, Name: s.Name, Email: s.Email, CreatedAt: s.CreatedAt})
	}
}

func getSubjectHandler(svc *registry.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		s, err := svc.GetSubject(r.Context(), id)
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, SubjectResponse{ID: s.ID, Name: s.Name, Email: s.Email, CreatedAt: s.CreatedAt})
	}
}

func listSubjectsHandler(svc *registry.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, limit, err := pagination(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_pagination", err.Error())
			return
		}
		subjects, err := svc.ListSubjects(r.Context(), offset, limit)
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		out := make([]SubjectResponse, 0, len(subjects))
		for _, s := range subjects {
			out = append(out, SubjectResponse{ID: s.ID, Name: s.Name, Email: s.Email, CreatedAt: s.CreatedAt})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func roomResponse(rm domain.Room) RoomResponse {
	return RoomResponse{ID: rm.ID, Name: rm.Name, Location: rm.Location, Capacity: rm.Capacity, Active: rm.Active}
}

func createRoomHandler(svc *registry.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRoomRequest
		if !rep.decode(w, r, &req) {
			return
		}
		rm, err := svc.RegisterRoom(r.Context(), registry.NewRoom{Name: req.Name, Location: req.Location, Capacity: req.Capacity})
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, roomResponse(rm))
	}
}

func getRoomHandler(svc *registry.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		rm, err := svc.GetRoom(r.Context(), id)
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, roomResponse(rm))
	}
}

func listRoomsHandler(svc *registry.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, limit, err := pagination(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_pagination", err.Error())
			return
		}
		rooms, err := svc.ListRooms(r.Context(), offset, limit)
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		out := make([]RoomResponse, 0, len(rooms))
		for _, rm := range rooms {
			out = append(out, roomResponse(rm))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func setRoomActiveHandler(svc *registry.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		var req SetRoomActiveRequest
		if !rep.decode(w, r, &req) {
			return
		}
		rm, err := svc.SetRoomActive(r.Context(), id, *req.Active)
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, roomResponse(rm))
	}
}

func createStateHandler(svc *registry.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateStateRequest
		if !rep.decode(w, r, &req) {
			return
		}
		st, err := svc.CreateState(r.Context(), registry.NewState{
			Code:         req.Code,
			Name:         req.Name,
			Description:  req.Description,
			Color:        req.Color,
			Order:        req.Order,
			ReleasesSlot: req.ReleasesSlot,
		})
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, newStateResponse(st))
	}
}

func getStateHandler(svc *registry.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		st, err := svc.GetState(r.Context(), id)
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newStateResponse(st))
	}
}

func listStatesHandler(svc *registry.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		states, err := svc.ListStates(r.Context())
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		out := make([]StateResponse, 0, len(states))
		for _, st := range states {
			out = append(out, newStateResponse(st))
		}
		writeJSON(w, http.StatusOK, out)
	}
}
