package utils

import (
	"encoding/json"
	"net/http"
)

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func WriteJSON(w http.ResponseWriter, code int, message string, data any) {
	WriteJSONStatus(w, code, true, message, data)
}

// WriteJSONStatus is WriteJSON for outcomes that carry data but did not
// succeed, such as a declined payment.
func WriteJSONStatus(w http.ResponseWriter, code int, success bool, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(envelope{Success: success, Message: message, Data: data})
}

func WriteJSONError(w http.ResponseWriter, code int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Message: message, Error: kind})
}
