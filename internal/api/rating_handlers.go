package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/rating"
)

func submitRatingHandler(svc *rating.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SubmitRatingRequest
		if !rep.decode(w, r, &req) {
			return
		}
		rt, err := svc.Submit(r.Context(), rating.SubmitRequest{
			AppointmentID: uuid.MustParse(req.AppointmentID),
			SubjectID:     uuid.MustParse(req.SubjectID),
			ProviderID:    uuid.MustParse(req.ProviderID),
			Score:         req.Score,
			Comment:       req.Comment,
		})
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, newRatingResponse(rt))
	}
}

func getRatingHandler(svc *rating.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		rt, err := svc.Get(r.Context(), id)
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newRatingResponse(rt))
	}
}

func updateRatingHandler(svc *rating.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		var req UpdateRatingRequest
		if !rep.decode(w, r, &req) {
			return
		}
		rt, err := svc.Update(r.Context(), id, rating.UpdateRequest{Score: req.Score, Comment: req.Comment})
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newRatingResponse(rt))
	}
}

func deleteRatingHandler(svc *rating.Service, rep *reporter) http.HandlerFunc {
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

func providerRatingsHandler(svc *rating.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		ratings, err := svc.ListByProvider(r.Context(), id)
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		out := make([]RatingResponse, 0, len(ratings))
		for _, rt := range ratings {
			out = append(out, newRatingResponse(rt))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func subjectRatingsHandler(svc *rating.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		ratings, err := svc.ListBySubject(r.Context(), id)
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		out := make([]RatingResponse, 0, len(ratings))
		for _, rt := range ratings {
			out = append(out, newRatingResponse(rt))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func recomputeRatingHandler(svc *rating.Service, rep *reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		avg, err := svc.Recompute(r.Context(), id)
		if err != nil {
			rep.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, RecomputeResponse{ProviderID: id, AverageRating: avg})
	}
}
