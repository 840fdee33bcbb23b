// Package envelope is the uniform JSON response wrapper shared by every
// handler.
package envelope

import (
	"encoding/json"
	"net/http"

	"jobtracker/apperr"
)

// Envelope is written as {"message", "data", "isSuccess"}.
type Envelope struct {
	Message   string `json:"message"`
	Data      any    `json:"data"`
	IsSuccess bool   `json:"isSuccess"`
}

func OK(message string, data any) Envelope {
	return Envelope{Message: message, Data: data, IsSuccess: true}
}

// Fail never carries data; callers choose the message so driver details stay
// out of responses.
func Fail(message string) Envelope {
	return Envelope{Message: message}
}

// StatusFor maps a classified error onto an HTTP status code.
func StatusFor(err error) int {
	switch apperr.CodeOf(err) {
	case apperr.CodeInvalidIdentifier:
		return http.StatusBadRequest
	case apperr.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Write serializes env with the given status.
func Write(w http.ResponseWriter, status int, env Envelope) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(env)
}
