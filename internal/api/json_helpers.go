package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"viewtube/internal/media"
	"viewtube/internal/storage"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]interface{}{"success": false, "error": err.Error()})
}

// WriteError is an exported helper for returning JSON API errors.
func WriteError(w http.ResponseWriter, status int, err error) {
	writeError(w, status, err)
}

// writeDomainError converts a classified repository or upload failure into
// the matching HTTP status. This is the single place error kinds meet status
// codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var validation *media.ValidationError
	if errors.As(err, &validation) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	switch storage.KindOf(err) {
	case storage.KindValidation:
		writeError(w, http.StatusBadRequest, err)
	case storage.KindUnauthorized:
		writeError(w, http.StatusUnauthorized, err)
	case storage.KindForbidden:
		writeError(w, http.StatusForbidden, err)
	case storage.KindNotFound:
		writeError(w, http.StatusNotFound, err)
	case storage.KindConflict:
		// Conflicts surface as client errors to match the historical API
		// contract ("you already have a channel" is a 400, not a 409).
		writeError(w, http.StatusBadRequest, err)
	default:
		h.logger().Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal server error"))
	}
}

func decodeJSON(r *http.Request, dest interface{}) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed string) {
	w.Header().Set("Allow", allowed)
	writeError(w, http.StatusMethodNotAllowed, errors.New("method "+r.Method+" not allowed"))
}
