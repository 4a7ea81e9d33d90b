package common

import (
	"encoding/json"
	"net/http"
)

const (
	StatusSuccess = "success"
	StatusFail    = "fail"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	AuthToken string `json:"auth_token,omitempty"`
	Data      any    `json:"data,omitempty"`
}

func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, Response{Status: StatusFail, Message: message})
}

// RespondWithDomainError writes the status and fixed message mapped from err.
func RespondWithDomainError(w http.ResponseWriter, err error) {
	RespondWithError(w, HTTPStatusFromError(err), MessageFromError(err))
}

func RespondWithSuccess(w http.ResponseWriter, code int, resp Response) {
	resp.Status = StatusSuccess
	RespondWithJSON(w, code, resp)
}

func RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":"fail","message":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
