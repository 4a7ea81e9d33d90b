package common

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound           = errors.New("requested resource not found")
	ErrConflict           = errors.New("resource conflict") // unique constraint on username or email
	ErrInvalidPayload     = errors.New("invalid payload")
	ErrDuplicateUser      = errors.New("user already exists")
	ErrUserNotFound       = fmt.Errorf("user does not exist: %w", ErrNotFound)
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("token invalid") // malformed, bad signature or revoked
	ErrStorageUnavailable = errors.New("storage unavailable")

	ErrDuplicateEmail    = fmt.Errorf("email already exists: %w", ErrConflict)
	ErrDuplicateUsername = fmt.Errorf("username already exists: %w", ErrConflict)
)

// User-facing messages. Clients and tests match on these strings.
const (
	MsgInvalidPayload      = "Invalid payload."
	MsgDuplicateUser       = "Sorry. That user already exists."
	MsgDuplicateEmail      = "Sorry. That email already exists."
	MsgDuplicateUsername   = "Sorry. That username already exists."
	MsgUserNotFound        = "User does not exist."
	MsgUserNotFoundByID    = "User does not exist"
	MsgInvalidCredentials  = "Invalid credentials."
	MsgTokenExpired        = "Signature Expired. Please log in again."
	MsgTokenInvalid        = "Invalid Token. Please log in again."
	MsgTokenMissing        = "Provide a valid auth token."
	MsgServiceUnavailable  = "Service unavailable."
	MsgInternalServerError = "Something went wrong."
)

// HTTPStatusFromError maps domain errors to HTTP status codes.
func HTTPStatusFromError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidPayload),
		errors.Is(err, ErrDuplicateUser),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrInvalidCredentials):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTokenExpired), errors.Is(err, ErrTokenInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// MessageFromError returns the fixed message shown to clients for err.
// Internal details never leak: unknown errors get a generic message.
func MessageFromError(err error) string {
	switch {
	case errors.Is(err, ErrInvalidPayload):
		return MsgInvalidPayload
	case errors.Is(err, ErrDuplicateUser):
		return MsgDuplicateUser
	case errors.Is(err, ErrDuplicateEmail):
		return MsgDuplicateEmail
	case errors.Is(err, ErrDuplicateUsername):
		return MsgDuplicateUsername
	case errors.Is(err, ErrConflict):
		return MsgDuplicateUser
	case errors.Is(err, ErrUserNotFound):
		return MsgUserNotFound
	case errors.Is(err, ErrInvalidCredentials):
		return MsgInvalidCredentials
	case errors.Is(err, ErrTokenExpired):
		return MsgTokenExpired
	case errors.Is(err, ErrTokenInvalid):
		return MsgTokenInvalid
	case errors.Is(err, ErrStorageUnavailable):
		return MsgServiceUnavailable
	}
	return MsgInternalServerError
}

// StorageError marks err as a storage outage while keeping it in the chain.
func StorageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
