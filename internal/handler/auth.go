package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/calebdunn/hearth/internal/auth"
)

type AuthHandler struct {
	svc    *auth.Service
	logger *slog.Logger
}

func NewAuthHandler(svc *auth.Service, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

// SelectHousehold is step one of login: household PIN in, household token
// and member picker out.
func (h *AuthHandler) SelectHousehold(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HouseholdID int64  `json:"household_id"`
		Pin         string `json:"pin"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	sel, err := h.svc.SelectHousehold(r.Context(), req.HouseholdID, req.Pin)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

// Login is step two: personal PIN plus the household token from step one.
// An invited member gets 409 with an activation token instead of a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID         int64  `json:"user_id"`
		Pin            string `json:"pin"`
		HouseholdToken string `json:"household_token"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.svc.LoginUser(r.Context(), req.UserID, req.Pin, req.HouseholdToken)
	if err != nil {
		var actErr *auth.ActivationRequiredError
		if errors.As(err, &actErr) {
			writeJSON(w, http.StatusConflict, map[string]string{
				"error":            "activation_required",
				"activation_token": actErr.ActivationToken,
			})
			return
		}
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	pair, err := h.svc.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if err := h.svc.Logout(r.Context(), ac.UserID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ActivationToken string `json:"activation_token"`
		NewPin          string `json:"new_pin"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.svc.ActivateAccount(r.Context(), req.ActivationToken, req.NewPin)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ChangePin sets a new personal PIN for the authenticated member.
func (h *AuthHandler) ChangePin(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var req struct {
		CurrentPin string `json:"current_pin"`
		NewPin     string `json:"new_pin"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.CurrentPin == "" || req.NewPin == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "current_pin and new_pin are required"})
		return
	}

	if err := h.svc.ChangePersonalPin(r.Context(), ac.UserID, req.CurrentPin, req.NewPin); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChangeHouseholdPin rotates the household PIN. The service enforces that
// only admins may do this.
func (h *AuthHandler) ChangeHouseholdPin(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var req struct {
		CurrentPin  string `json:"current_pin"`
		NewPin      string `json:"new_pin"`
		HouseholdID int64  `json:"household_id,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.CurrentPin == "" || req.NewPin == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "current_pin and new_pin are required"})
		return
	}

	if err := h.svc.ChangeHouseholdPin(r.Context(), ac, targetHousehold(ac, req.HouseholdID), req.CurrentPin, req.NewPin); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Pin         string `json:"pin"`
		HouseholdID int64  `json:"household_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" || req.Pin == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and pin are required"})
		return
	}

	result, err := h.svc.SelfRegister(r.Context(), req.Name, req.Pin, req.HouseholdID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}
