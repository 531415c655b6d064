package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mindwell/session-scheduling/internal/config"
	"github.com/mindwell/session-scheduling/internal/schedule"
	"github.com/mindwell/session-scheduling/internal/session"
)

type RouterConfig struct {
	Coordinator *session.Coordinator
	Engine      *schedule.Engine
	Projector   *schedule.Projector
	Config      config.Config
	PgPool      *pgxpool.Pool
	Redis       *redis.Client
	Version     string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Config.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Availability endpoints
	r.Route("/therapists/{therapistID}", func(r chi.Router) {
		r.Get("/slots", getSlotsHandler(cfg.Engine, cfg.Config))
		r.Get("/schedule", getScheduleHandler(cfg.Projector, cfg.Config))
		r.Get("/sessions", listSessionsHandler(cfg.Coordinator))
	})

	// Session endpoints
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", createSessionHandler(cfg.Coordinator))
		r.Get("/{id}", getSessionHandler(cfg.Coordinator))
		r.Post("/{id}/confirm", confirmSessionHandler(cfg.Coordinator))
		r.Post("/{id}/cancel", cancelSessionHandler(cfg.Coordinator))

		r.Post("/{id}/participants", addParticipantHandler(cfg.Coordinator))
		r.Get("/{id}/participants", getParticipantsHandler(cfg.Coordinator))
		r.Delete("/{id}/participants/{userID}", removeParticipantHandler(cfg.Coordinator))
		r.Post("/{id}/participants/{userID}/confirm", confirmParticipantHandler(cfg.Coordinator))
		r.Post("/{id}/participants/{userID}/decline", declineParticipantHandler(cfg.Coordinator))
		r.Post("/{id}/participants/{userID}/attendance", markAttendanceHandler(cfg.Coordinator))

		r.Get("/{id}/stats", getStatsHandler(cfg.Coordinator))
	})

	return r
}
