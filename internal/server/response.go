package server

import (
	"errors"
	"io"
	"maps"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"

	"github.com/desertthunder/tuttitracks/internal/shared"
)

// envelope is a JSON response body; "success" is added when written.
type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	out := envelope{"success": status < http.StatusBadRequest}
	maps.Copy(out, body)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(out)
}

// writeError maps err to its status code. Server errors are logged and their message hidden.
func writeError(w http.ResponseWriter, logger *log.Logger, err error) {
	status := shared.StatusCode(err)
	body := envelope{"message": err.Error()}

	var validationErr *shared.ValidationError
	if errors.As(err, &validationErr) {
		body["errors"] = validationErr.Fields
	}

	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		logger.Error("request failed", "err", err)
		body["message"] = http.StatusText(status)
	}
	writeJSON(w, status, body)
}

// decode reads a JSON request body into v. An empty body leaves v unchanged.
func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return shared.NewValidationError("body", "request body must be valid JSON")
}
