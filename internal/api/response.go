package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Default().Warn("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorBody{Error: kind, Message: message})
}

// writeLargeDataset is the structured response for a history that exceeds the
// upstream pagination ceiling: point the caller at the report path.
func writeLargeDataset(w http.ResponseWriter, address string) {
	writeJSON(w, http.StatusRequestedRangeNotSatisfiable, errorBody{
		Error:   "dataset_too_large",
		Message: "transaction history exceeds the synchronous limit; request an asynchronous report instead",
		Detail:  "POST /api/v1/reports/" + address,
	})
}
