// Package httputil renders JSON bodies and coded errors at the HTTP boundary.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "consentsync/pkg/domain-errors"
)

// StatusResponse is the {status, message} envelope every endpoint answers with.
type StatusResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteStatus writes the status envelope.
func WriteStatus(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, StatusResponse{Status: status, Message: message})
}

// WriteError maps err to a status and writes the status envelope. Internal
// errors never leak their cause.
func WriteError(w http.ResponseWriter, err error) {
	status := dErrors.ToHTTPStatus(err)
	msg := dErrors.Message(err)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		msg = "Internal Service Error"
	}
	WriteStatus(w, status, msg)
}
