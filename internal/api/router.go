package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pulseone/appointments-service/internal/booking"
)

type RouterConfig struct {
	Service  *booking.Service
	Queue    *booking.Queue
	Sessions *booking.Sessions
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Log      zerolog.Logger
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", createSessionHandler(cfg.Sessions))
		r.Get("/{id}", getSessionHandler(cfg.Sessions))
		r.Patch("/{id}", updateSessionHandler(cfg.Sessions))
		r.Delete("/{id}", deactivateSessionHandler(cfg.Sessions))
		r.Post("/{id}/overrides", createOverrideHandler(cfg.Sessions))
		r.Get("/{id}/availability", sessionAvailabilityHandler(cfg.Sessions))
	})

	r.Route("/doctors/{id}", func(r chi.Router) {
		r.Get("/sessions", listDoctorSessionsHandler(cfg.Sessions))
		r.Get("/calendar", doctorCalendarHandler(cfg.Sessions))
	})

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", bookAppointmentHandler(cfg.Service))
		r.Get("/{id}", getAppointmentHandler(cfg.Service))
		r.Get("/{id}/history", appointmentHistoryHandler(cfg.Service))
		r.Post("/{id}/cancel", cancelAppointmentHandler(cfg.Service))
		r.Post("/{id}/verify-payment", verifyPaymentHandler(cfg.Service))

		r.Post("/{id}/check-in", checkInHandler(cfg.Queue))
		r.Post("/{id}/start", startConsultationHandler(cfg.Queue))
		r.Post("/{id}/complete", completeConsultationHandler(cfg.Queue))
		r.Post("/{id}/no-show", noShowHandler(cfg.Queue))
		r.Get("/{id}/position", positionHandler(cfg.Queue))
	})

	r.Get("/patients/{id}/appointments", patientAppointmentsHandler(cfg.Service))

	r.Route("/queue/{doctorId}", func(r chi.Router) {
		r.Get("/", doctorQueueHandler(cfg.Queue))
		r.Post("/call-next", callNextHandler(cfg.Queue))
	})

	// Trusted service-to-service hook, fronted by the gateway.
	r.Post("/internal/appointments/{id}/complete", completeExternalHandler(cfg.Service))

	return r
}
