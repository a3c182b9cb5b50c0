package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinician-scheduling/internal/scheduling"
)

type RouterConfig struct {
	Service *scheduling.Service
	Auth    CallerResolver
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Logger  zerolog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	svc := cfg.Service
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Auth))

		r.Route("/doctors/{doctor_id}", func(r chi.Router) {
			r.Put("/working-hours", setWorkingHoursHandler(svc))
			r.Get("/working-hours", getWorkingHoursHandler(svc))

			r.Post("/slots/generate", generateSlotsHandler(svc))
			r.Get("/slots", getDoctorSlotsHandler(svc))
			r.Get("/slots/available", getAvailableSlotsHandler(svc))
			r.Get("/slots/next", getNextAvailableSlotHandler(svc))
			r.Get("/generation-runs", getGenerationHistoryHandler(svc))

			r.Get("/booking-requests/pending", getPendingRequestsHandler(svc))
		})

		r.Post("/slots/{slot_id}/block", blockSlotHandler(svc))
		r.Post("/slots/{slot_id}/unblock", unblockSlotHandler(svc))

		r.Post("/booking-requests", createBookingRequestHandler(svc))
		r.Get("/booking-requests/mine", getMyBookingRequestsHandler(svc))
		r.Post("/booking-requests/{request_id}/confirm", confirmBookingRequestHandler(svc))
		r.Post("/booking-requests/{request_id}/reject", rejectBookingRequestHandler(svc))
		r.Post("/booking-requests/{request_id}/cancel", cancelBookingRequestHandler(svc))

		r.Get("/appointments/{appointment_id}", getAppointmentHandler(svc))
	})

	return r
}
