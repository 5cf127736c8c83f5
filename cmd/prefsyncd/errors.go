package main

import (
	"encoding/json"
	"net/http"
)

// APIError is the structured error body. requestId ties the response back
// to the correlated request log line; it is omitted when no RequestID
// middleware ran.
type APIError struct {
	Error     string `json:"error"`
	Code      int    `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, APIError{
		Error:     msg,
		Code:      status,
		RequestID: RequestIDFromContext(r.Context()),
	})
}
