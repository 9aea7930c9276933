package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/calebdunn/hearth/internal/auth"
	"github.com/calebdunn/hearth/internal/rbac"
	"github.com/calebdunn/hearth/internal/token"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes. Anything outside the known
// taxonomy is logged in full and surfaced as an opaque internal error.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, auth.ErrHouseholdNotFound),
		errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, auth.ErrMembershipNotFound),
		errors.Is(err, auth.ErrRequestNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, auth.ErrInvalidPin),
		errors.Is(err, auth.ErrInvalidHouseToken),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidAction),
		errors.Is(err, auth.ErrInvalidRefresh),
		errors.Is(err, token.ErrTokenExpired):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
	case errors.Is(err, auth.ErrForbidden),
		errors.Is(err, rbac.ErrAccessExpired),
		errors.Is(err, rbac.ErrOutsideSchedule),
		errors.Is(err, rbac.ErrModuleRestricted):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, auth.ErrPendingApproval),
		errors.Is(err, auth.ErrSuspended),
		errors.Is(err, auth.ErrStateConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		logger.Error("internal error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return false
	}
	return true
}
