package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/calebdunn/hearth/internal/auth"
	"github.com/calebdunn/hearth/internal/model"
	"github.com/calebdunn/hearth/internal/store"
)

// MemberHandler exposes the administrative membership operations. Routes are
// gated by RequireAuth plus the members/manage permission; the service
// re-checks the rank guards itself.
type MemberHandler struct {
	svc         *auth.Service
	memberships *store.MembershipStore
	logger      *slog.Logger
}

func NewMemberHandler(svc *auth.Service, memberships *store.MembershipStore, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{svc: svc, memberships: memberships, logger: logger}
}

// targetHousehold resolves the household an admin operation applies to. A
// client-supplied household id only ever narrows to the caller's own
// household or, for admins, selects another one; the service rejects the
// cross-tenant case for everyone else.
func targetHousehold(ac auth.AuthContext, requested int64) int64 {
	if requested != 0 {
		return requested
	}
	return ac.HouseholdID
}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	members, err := h.memberships.ListMembers(r.Context(), ac.HouseholdID, model.StatusActive, model.StatusInvited)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

func (h *MemberHandler) Approve(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	var req struct {
		UserID      int64  `json:"user_id"`
		HouseholdID int64  `json:"household_id,omitempty"`
		Role        string `json:"role,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.svc.ApproveRequest(r.Context(), ac, targetHousehold(ac, req.HouseholdID), req.UserID, req.Role)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *MemberHandler) Reject(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	var req struct {
		UserID      int64 `json:"user_id"`
		HouseholdID int64 `json:"household_id,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.svc.RejectRequest(r.Context(), ac, targetHousehold(ac, req.HouseholdID), req.UserID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MemberHandler) Invite(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	var req struct {
		Name        string `json:"name"`
		Role        string `json:"role"`
		TempPin     string `json:"temp_pin"`
		HouseholdID int64  `json:"household_id,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" || req.Role == "" || req.TempPin == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name, role and temp_pin are required"})
		return
	}

	result, err := h.svc.InviteMember(r.Context(), ac, targetHousehold(ac, req.HouseholdID), req.Name, req.Role, req.TempPin)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *MemberHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.svc.SuspendMember)
}

func (h *MemberHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.svc.ResumeMember)
}

func (h *MemberHandler) Remove(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.svc.RemoveMember)
}

func (h *MemberHandler) statusChange(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actor auth.AuthContext, householdID, userID int64) error) {
	ac, _ := auth.FromContext(r.Context())
	var req struct {
		UserID      int64 `json:"user_id"`
		HouseholdID int64 `json:"household_id,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := op(r.Context(), ac, targetHousehold(ac, req.HouseholdID), req.UserID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MemberHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	var req struct {
		UserID      int64  `json:"user_id"`
		Role        string `json:"role"`
		HouseholdID int64  `json:"household_id,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.svc.ChangeRole(r.Context(), ac, targetHousehold(ac, req.HouseholdID), req.UserID, req.Role); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
