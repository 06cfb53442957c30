package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/auth"
	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/metrics"
)

type RouterConfig struct {
	Service BookingService
	Auth    *auth.Authenticator
	// Registrar enables POST /doctors and POST /auth/register when set.
	Registrar identity.Registrar
	// TokenTTL is the lifetime of tokens issued at registration, default 24h.
	TokenTTL time.Duration
	Health   *HealthHandler
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger
	Location *time.Location
	// Now defaults to time.Now.
	Now func() time.Time
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}

	h := &handlers{
		svc:       cfg.Service,
		registrar: cfg.Registrar,
		issuer:    cfg.Auth,
		tokenTTL:  cfg.TokenTTL,
		loc:       cfg.Location,
		now:       cfg.Now,
		logger:    cfg.Logger.With().Str("component", "api").Logger(),
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(MetricsMiddleware(cfg.Metrics))
	r.Use(middleware.Recoverer)

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(cfg.Gatherer))
	}

	if cfg.Registrar != nil {
		r.Post("/auth/register", h.registerPatient)
	}

	r.Group(func(r chi.Router) {
		r.Use(cfg.Auth.Middleware)

		if cfg.Registrar != nil {
			r.With(auth.RequireRole(identity.RoleAdmin)).Post("/doctors", h.addDoctor)
		}

		r.With(auth.RequireRole(identity.RolePatient)).Post("/appointments", h.submitAppointment)
		// role checks for reads live in the service so an unknown role fails loudly
		r.Get("/appointments", h.listAppointments)
		r.Get("/doctors", h.listDoctors)
		r.Get("/doctors/{doctorId}/appointments", h.doctorAvailability)
	})

	return r
}
