package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/observability"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// reporter turns service errors into responses and reports unexpected ones.
type reporter struct {
	logger   *slog.Logger
	validate *validator.Validate
}

// decode reads a JSON body into dst and runs struct validation. It writes the
// 400 response itself and returns false on failure.
func (rep *reporter) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON: "+err.Error())
		return false
	}
	if err := rep.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Details: "request failed validation",
				Fields:  fields,
			})
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	return true
}

func (rep *reporter) fail(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	code := apperr.CodeOf(err)
	kind := apperr.KindOf(err)

	switch kind {
	case apperr.KindNotFound:
		writeError(w, http.StatusNotFound, code, err.Error())
	case apperr.KindValidation:
		writeError(w, http.StatusBadRequest, code, err.Error())
	case apperr.KindConflict:
		writeError(w, http.StatusConflict, code, err.Error())
	case apperr.KindInfrastructure:
		rep.logger.WarnContext(ctx, "dependency unavailable",
			"request_id", GetRequestID(ctx), "code", code, "err", err)
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, code, "a dependency is temporarily unavailable, retry shortly")
	case apperr.KindPartial:
		var p *apperr.PartialError
		errors.As(err, &p)
		rep.logger.ErrorContext(ctx, "operation partially applied",
			"request_id", GetRequestID(ctx), "op", p.Op, "err", err)
		observability.CaptureError(ctx, err, map[string]string{"request_id": GetRequestID(ctx), "op": p.Op})
		writeJSON(w, http.StatusInternalServerError, PartialFailureResponse{
			Error:     code,
			Details:   err.Error(),
			Operation: p.Op,
			Result:    toResponse(p.Result),
		})
	default:
		rep.logger.ErrorContext(ctx, "request failed",
			"request_id", GetRequestID(ctx), "code", code, "err", err)
		observability.CaptureError(ctx, err, map[string]string{"request_id": GetRequestID(ctx)})
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}

func toResponse(v any) any {
	switch x := v.(type) {
	case domain.Appointment:
		return newAppointmentResponse(x)
	case domain.Rating:
		return newRatingResponse(x)
	}
	return v
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func pagination(r *http.Request) (offset, limit int, err error) {
	q := r.URL.Query()
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("offset must be a non-negative integer")
		}
	}
	limit = 20
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit <= 0 {
			return 0, 0, fmt.Errorf("limit must be a positive integer")
		}
	}
	return offset, limit, nil
}

func parseUUIDPtr(s *string) *uuid.UUID {
	if s == nil || *s == "" {
		return nil
	}
	id := uuid.MustParse(*s)
	return &id
}
