package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/jwtauth/v5"

	"usersvc/internal/common"
)

type contextKey string

const bearerCtxKey contextKey = "bearerToken"

// RequireBearer puts the bearer token of the Authorization header into the
// request context. Requests without one are answered with missingStatus.
// The token itself is validated by the auth service, which also has to
// check revocation.
func RequireBearer(missingStatus int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := jwtauth.TokenFromHeader(r)
			if token == "" {
				common.RespondWithError(w, missingStatus, common.MsgTokenMissing)
				return
			}
			ctx := context.WithValue(r.Context(), bearerCtxKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetBearerFromContext returns the token stored by RequireBearer.
func GetBearerFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(bearerCtxKey).(string)
	return token, ok && token != ""
}
