package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/calebdunn/hearth/internal/auth"
	"github.com/calebdunn/hearth/internal/model"
	"github.com/calebdunn/hearth/internal/rbac"
	"github.com/calebdunn/hearth/internal/store"
	"github.com/calebdunn/hearth/internal/token"
)

// RequireAuth validates the bearer access token and populates AuthContext.
// The membership is re-checked on every request so a suspension or removal
// takes effect immediately, not at token expiry.
func RequireAuth(signer *token.Signer, memberships *store.MembershipStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := signer.Parse(raw, token.PurposeAccess)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			m, err := memberships.Get(r.Context(), claims.HouseholdID, claims.UserID)
			if err != nil || m == nil || m.Status != model.StatusActive {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ac := auth.AuthContext{
				UserID:      claims.UserID,
				HouseholdID: claims.HouseholdID,
				Role:        rbac.Role(m.Role),
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission gates a route on the permission matrix and, for external
// members, on their access window. Only the sentinel denial reasons reach the
// client; any other window failure is logged and surfaced as a bare 403.
func RequirePermission(memberships *store.MembershipStore, module rbac.Module, action rbac.Action, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := auth.FromContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if !rbac.HasPermission(ac.Role, module, action) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			if ac.Role == rbac.RoleExternal {
				m, err := memberships.Get(r.Context(), ac.HouseholdID, ac.UserID)
				if err != nil || m == nil {
					http.Error(w, "Forbidden", http.StatusForbidden)
					return
				}
				if err := rbac.EvaluateWindow(m, module, time.Now()); err != nil {
					switch {
					case errors.Is(err, rbac.ErrAccessExpired),
						errors.Is(err, rbac.ErrOutsideSchedule),
						errors.Is(err, rbac.ErrModuleRestricted):
						http.Error(w, err.Error(), http.StatusForbidden)
					default:
						logger.Error("access window evaluation", "error", err,
							"user_id", ac.UserID, "household_id", ac.HouseholdID)
						http.Error(w, "Forbidden", http.StatusForbidden)
					}
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if raw, ok := strings.CutPrefix(h, "Bearer "); ok {
		return raw
	}
	// WebSocket clients cannot set headers from the browser.
	return r.URL.Query().Get("access_token")
}
