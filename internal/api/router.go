package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/events"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	"github.com/hackgods/clinic-scheduling/internal/rating"
	"github.com/hackgods/clinic-scheduling/internal/registry"
)

type RouterConfig struct {
	Appointments  *appointment.Service
	Ratings       *rating.Service
	Registry      *registry.Service
	Slots         *availability.Generator
	EventLog      *events.EventLog
	Health        []Dependency
	Logger        *slog.Logger
	EnableMetrics bool
	Env           string
	Version       string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rep := &reporter{logger: logger, validate: newValidator()}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	if cfg.EnableMetrics {
		r.Use(metrics.Middleware)
		r.Handle("/metrics", metrics.Handler())
	}

	health := NewHealthHandler(cfg.Health, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	appts, ratings, reg := cfg.Appointments, cfg.Ratings, cfg.Registry

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(appts, rep))
		r.Get("/", listAppointmentsHandler(appts, rep))
		r.Get("/{id}", getAppointmentHandler(appts, rep))
		r.Patch("/{id}", updateAppointmentHandler(appts, rep))
		r.Delete("/{id}", deleteAppointmentHandler(appts, rep))
		r.Post("/{id}/transition", transitionAppointmentHandler(appts, rep))
		r.Post("/{id}/cancel", cancelAppointmentHandler(appts, rep))
		r.Post("/{id}/pay", payAppointmentHandler(appts, rep))
		r.Get("/{id}/rating", appointmentRatingHandler(ratings, rep))
		if cfg.EventLog != nil {
			r.Get("/{id}/events", eventHistoryHandler(cfg.EventLog, rep))
		}
	})

	r.Route("/providers", func(r chi.Router) {
		r.Post("/", createProviderHandler(reg, rep))
		r.Get("/", listProvidersHandler(reg, rep))
		r.Get("/{id}", getProviderHandler(reg, rep))
		r.Patch("/{id}", updateProviderHandler(reg, rep))
		r.Put("/{id}/availability", setProviderAvailabilityHandler(reg, rep))
		r.Put("/{id}/status", setProviderStatusHandler(reg, rep))
		r.Get("/{id}/appointments", providerAppointmentsHandler(appts, rep))
		r.Get("/{id}/free-slots", freeSlotsHandler(cfg.Slots, rep))
		r.Get("/{id}/ratings", providerRatingsHandler(ratings, rep))
		r.Post("/{id}/ratings/recompute", recomputeRatingHandler(ratings, rep))
	})

	r.Route("/subjects", func(r chi.Router) {
		r.Post("/", createSubjectHandler(reg, rep))
		r.Get("/", listSubjectsHandler(reg, rep))
		r.Get("/{id}", getSubjectHandler(reg, rep))
		r.Get("/{id}/appointments", subjectAppointmentsHandler(appts, rep))
		r.Get("/{id}/ratings", subjectRatingsHandler(ratings, rep))
	})

	r.Route("/rooms", func(r chi.Router) {
		r.Post("/", createRoomHandler(reg, rep))
		r.Get("/", listRoomsHandler(reg, rep))
		r.Get("/{id}", getRoomHandler(reg, rep))
		r.Put("/{id}/active", setRoomActiveHandler(reg, rep))
	})

	r.Route("/states", func(r chi.Router) {
		r.Post("/", createStateHandler(reg, rep))
		r.Get("/", listStatesHandler(reg, rep))
		r.Get("/{id}", getStateHandler(reg, rep))
	})

	r.Route("/ratings", func(r chi.Router) {
		r.Post("/", submitRatingHandler(ratings, rep))
		r.Get("/{id}", getRatingHandler(ratings, rep))
		r.Patch("/{id}", updateRatingHandler(ratings, rep))
		r.Delete("/{id}", deleteRatingHandler(ratings, rep))
	})

	return r
}
