package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"usersvc/internal/common"
)

// ReadinessCheck is one dependency that has to answer before the service
// takes traffic.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type HealthHandler struct {
	checks  []ReadinessCheck
	timeout time.Duration
	logger  *slog.Logger
}

func NewHealthHandler(logger *slog.Logger, checks ...ReadinessCheck) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: 2 * time.Second, logger: logger}
}

func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ping", h.ping)
	r.Get("/health", h.health)
	r.Get("/ready", h.ready)
}

func (h *HealthHandler) ping(w http.ResponseWriter, r *http.Request) {
	common.RespondWithSuccess(w, http.StatusOK, common.Response{Message: "pong!"})
}

func (h *HealthHandler) health(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("OK"))
}

func (h *HealthHandler) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	healthy := true
	for _, c := range h.checks {
		if err := c.Check(ctx); err != nil {
			h.logger.WarnContext(ctx, "readiness check failed", "check", c.Name, "error", err)
			results[c.Name] = "unavailable"
			healthy = false
			continue
		}
		results[c.Name] = "ok"
	}

	if !healthy {
		common.RespondWithJSON(w, http.StatusServiceUnavailable, common.Response{
			Status:  common.StatusFail,
			Message: common.MsgServiceUnavailable,
			Data:    results,
		})
		return
	}
	common.RespondWithSuccess(w, http.StatusOK, common.Response{Data: results})
}
