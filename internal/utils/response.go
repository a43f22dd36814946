package utils

import (
	"encoding/json"
	"net/http"
)

// Payload is the envelope every endpoint responds with. Data is
// omitted when a handler has nothing beyond the outcome to report.
type Payload struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// JSONResponse writes the payload as JSON under the given status code.
func JSONResponse(w http.ResponseWriter, status int, payload Payload) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
