package handler

import (
	"encoding/json"
	"net/http"
)

// envelope is the uniform response shape: status reports success as a
// boolean, message is human-readable, data carries the payload on success.
type envelope struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// respond writes a success envelope.
func respond(w http.ResponseWriter, code int, message string, data any) {
	writeJSON(w, code, envelope{Status: true, Message: message, Data: data})
}

// respondError writes a failure envelope.
func respondError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, envelope{Status: false, Message: message})
}

// respondErrorExtra writes a failure envelope with additional top-level
// fields, e.g. the isExpired flag on expired visitor tokens.
func respondErrorExtra(w http.ResponseWriter, code int, message string, extra map[string]any) {
	body := map[string]any{
		"status":  false,
		"message": message,
	}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, code, body)
}

// decodeJSON parses the request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
