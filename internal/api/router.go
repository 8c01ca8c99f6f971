package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/clinicboard/clinic-scheduling/internal/schedule"
)

type RouterConfig struct {
	Service       *schedule.Service
	PgPool        *pgxpool.Pool
	Redis         *redis.Client
	Logger        *zap.Logger
	VisitDuration time.Duration
	Env           string
	Version       string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Everything below acts as the authenticated practitioner.
	r.Group(func(r chi.Router) {
		r.Use(PractitionerMiddleware)

		r.Get("/freebusy", freeBusyHandler(cfg.Service))
		r.Get("/calendar", calendarHandler(cfg.Service))

		r.Post("/bookings", createBookingHandler(cfg.Service, cfg.VisitDuration))
		r.Get("/bookings/{eventID}", getBookingHandler(cfg.Service))
		r.Patch("/bookings/{eventID}", rescheduleBookingHandler(cfg.Service))
		r.Delete("/bookings/{eventID}", cancelBookingHandler(cfg.Service))
		r.Post("/bookings/bulk-delete", bulkDeleteHandler(cfg.Service))

		r.Post("/appointments/{id}/status", updateStatusHandler(cfg.Service))

		r.Put("/schedule", replaceScheduleHandler(cfg.Service))
		r.Get("/schedule", getScheduleHandler(cfg.Service))

		r.Post("/absences", createAbsenceHandler(cfg.Service))
		r.Get("/absences", listAbsencesHandler(cfg.Service))
		r.Delete("/absences/{id}", deleteAbsenceHandler(cfg.Service))
	})

	return r
}
