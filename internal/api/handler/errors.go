package handler

import (
	"log/slog"
	"net/http"

	"usersvc/internal/common"
	"usersvc/internal/platform/logging"
)

// respondWithError answers with the fixed message for err and logs the
// failures clients cannot fix themselves.
func respondWithError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if common.HTTPStatusFromError(err) >= http.StatusInternalServerError {
		logging.LogError(r.Context(), logger, "request failed", err)
	}
	common.RespondWithDomainError(w, err)
}
