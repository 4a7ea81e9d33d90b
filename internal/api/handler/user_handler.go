package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"usersvc/internal/app/service"
	"usersvc/internal/common"
	"usersvc/internal/domain/model"
)

type UserHandler struct {
	userService *service.UserService
	logger      *slog.Logger
}

func NewUserHandler(userService *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{userService: userService, logger: logger}
}

func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.addUser)
	r.Get("/", h.listUsers)
	r.Get("/{id}", h.getUser)
}

func (h *UserHandler) addUser(w http.ResponseWriter, r *http.Request) {
	var req service.AddUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, common.MsgInvalidPayload)
		return
	}

	user, err := h.userService.AddUser(r.Context(), req)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	common.RespondWithSuccess(w, http.StatusCreated, common.Response{Message: user.Email + " was added!"})
}

func (h *UserHandler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		common.RespondWithError(w, http.StatusNotFound, common.MsgUserNotFoundByID)
		return
	}

	user, err := h.userService.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, common.ErrUserNotFound) {
			common.RespondWithError(w, http.StatusNotFound, common.MsgUserNotFoundByID)
			return
		}
		respondWithError(w, r, h.logger, err)
		return
	}
	common.RespondWithSuccess(w, http.StatusOK, common.Response{Data: user.Detail()})
}

func (h *UserHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.ListUsers(r.Context())
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	summaries := make([]model.UserSummary, 0, len(users))
	for i := range users {
		summaries = append(summaries, users[i].Summary())
	}
	common.RespondWithSuccess(w, http.StatusOK, common.Response{
		Data: map[string]any{"users": summaries},
	})
}
