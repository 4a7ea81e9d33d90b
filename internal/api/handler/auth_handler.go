package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"usersvc/internal/api/middleware"
	"usersvc/internal/app/service"
	"usersvc/internal/common"
	"usersvc/internal/platform/metrics"
)

type AuthHandler struct {
	authService *service.AuthService
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewAuthHandler builds the /auth handler. m may be nil.
func NewAuthHandler(authService *service.AuthService, logger *slog.Logger, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{authService: authService, logger: logger, metrics: m}
}

func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/register", h.register)
	r.Post("/login", h.login)
	r.With(middleware.RequireBearer(http.StatusForbidden)).Get("/logout", h.logout)
	r.With(middleware.RequireBearer(http.StatusUnauthorized)).Get("/status", h.status)
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.metrics.RecordAuth("register", metrics.OutcomeFailure)
		common.RespondWithError(w, http.StatusBadRequest, common.MsgInvalidPayload)
		return
	}

	res, err := h.authService.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, "register", err)
		return
	}
	h.metrics.RecordAuth("register", metrics.OutcomeSuccess)
	common.RespondWithSuccess(w, http.StatusCreated, common.Response{
		Message:   "Successfully registered.",
		AuthToken: res.Token,
	})
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.metrics.RecordAuth("login", metrics.OutcomeFailure)
		common.RespondWithError(w, http.StatusBadRequest, common.MsgInvalidPayload)
		return
	}

	res, err := h.authService.Login(r.Context(), req)
	if err != nil {
		h.fail(w, r, "login", err)
		return
	}
	h.metrics.RecordAuth("login", metrics.OutcomeSuccess)
	common.RespondWithSuccess(w, http.StatusOK, common.Response{
		Message:   "Successfully logged in.",
		AuthToken: res.Token,
	})
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.GetBearerFromContext(r.Context())
	if err := h.authService.Logout(r.Context(), token); err != nil {
		h.fail(w, r, "logout", err)
		return
	}
	h.metrics.RecordAuth("logout", metrics.OutcomeSuccess)
	common.RespondWithSuccess(w, http.StatusOK, common.Response{Message: "Successfully logged out."})
}

func (h *AuthHandler) status(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.GetBearerFromContext(r.Context())
	status, err := h.authService.Status(r.Context(), token)
	if err != nil {
		h.fail(w, r, "status", err)
		return
	}
	h.metrics.RecordAuth("status", metrics.OutcomeSuccess)
	common.RespondWithSuccess(w, http.StatusOK, common.Response{Data: status})
}

func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request, operation string, err error) {
	outcome := metrics.OutcomeFailure
	if common.HTTPStatusFromError(err) >= http.StatusInternalServerError {
		outcome = metrics.OutcomeError
	}
	h.metrics.RecordAuth(operation, outcome)
	respondWithError(w, r, h.logger, err)
}
