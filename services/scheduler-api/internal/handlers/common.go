package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// isoFormat is the wire timestamp layout: UTC, second precision, literal Z.
const isoFormat = "2006-01-02T15:04:05Z"

func parseISO(s string) (time.Time, error) {
	t, err := time.Parse(isoFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp must be UTC ISO-8601 (%s)", isoFormat)
	}
	// time.Parse tolerates fractional seconds even when the layout has
	// none; the exact re-format comparison rejects those, so every
	// accepted timestamp round-trips bit-exact.
	if t.Format(isoFormat) != s {
		return time.Time{}, fmt.Errorf("timestamp must be UTC ISO-8601 (%s)", isoFormat)
	}
	return t, nil
}

func formatISO(t time.Time) string {
	return t.UTC().Format(isoFormat)
}

// newID builds short prefixed identifiers like ev_9f2c41aa.
func newID(prefix string) string {
	u := uuid.New()
	return fmt.Sprintf("%s_%x", prefix, u[:4])
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: code, Message: message})
}

func writeValidationError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, "validation_error", message)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to build response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
