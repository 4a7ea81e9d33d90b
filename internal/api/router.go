package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"usersvc/internal/api/handler"
	"usersvc/internal/api/middleware"
	"usersvc/internal/app/service"
	"usersvc/internal/platform/metrics"
)

// NewRouter wires every route of the service. m may be nil, in which case
// neither request metrics nor /metrics are served.
func NewRouter(
	authService *service.AuthService,
	userService *service.UserService,
	readiness []handler.ReadinessCheck,
	logger *slog.Logger,
	m *metrics.Metrics,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	if m != nil {
		r.Use(middleware.Metrics(m))
	}
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	handler.NewHealthHandler(logger, readiness...).RegisterRoutes(r)
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	r.Route("/users", handler.NewUserHandler(userService, logger).RegisterRoutes)
	r.Route("/auth", handler.NewAuthHandler(authService, logger, m).RegisterRoutes)

	return r
}
