// Package respond writes JSON responses shared by every handler.
package respond

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the payload for 4xx responses: a stable token the client translates.
type ErrorBody struct {
	Error string `json:"error"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes {"error": token}.
func Error(w http.ResponseWriter, status int, token string) {
	JSON(w, status, ErrorBody{Error: token})
}

// Status ends the response with no body.
func Status(w http.ResponseWriter, status int) {
	w.WriteHeader(status)
}
