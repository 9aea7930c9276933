package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/calebdunn/hearth/internal/auth"
	"github.com/calebdunn/hearth/internal/database"
	"github.com/calebdunn/hearth/internal/model"
	"github.com/calebdunn/hearth/internal/rbac"
	"github.com/calebdunn/hearth/internal/store"
	"github.com/calebdunn/hearth/internal/token"
)

func setupAuthMiddleware(t *testing.T) (*token.Signer, *store.MembershipStore, auth.AuthContext) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	hs := store.NewHouseholdStore(db)
	us := store.NewUserStore(db)
	ms := store.NewMembershipStore(db)

	h, err := hs.Create(ctx, "Test House", "hash")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	u, err := us.Create(ctx, "Alice", "", "hash", "standard")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := ms.Create(ctx, &model.Membership{
		HouseholdID: h.ID, UserID: u.ID, Role: string(rbac.RoleMember), Status: model.StatusActive,
	}); err != nil {
		t.Fatalf("create membership: %v", err)
	}

	ac := auth.AuthContext{UserID: u.ID, HouseholdID: h.ID, Role: rbac.RoleMember}
	return token.NewSigner("test-secret"), ms, ac
}

func TestRequireAuthNoToken(t *testing.T) {
	signer, ms, _ := setupAuthMiddleware(t)

	handler := RequireAuth(signer, ms)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthInvalidToken(t *testing.T) {
	signer, ms, _ := setupAuthMiddleware(t)

	handler := RequireAuth(signer, ms)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthWrongPurpose(t *testing.T) {
	signer, ms, ac := setupAuthMiddleware(t)

	// A refresh token must not pass as an access token.
	raw, err := signer.MintSession(ac.UserID, ac.HouseholdID, string(ac.Role), token.PurposeRefresh, token.RefreshTTL)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	handler := RequireAuth(signer, ms)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthValidToken(t *testing.T) {
	signer, ms, want := setupAuthMiddleware(t)

	raw, err := signer.MintSession(want.UserID, want.HouseholdID, string(want.Role), token.PurposeAccess, token.AccessTTL)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	var got auth.AuthContext
	handler := RequireAuth(signer, ms)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			t.Fatal("expected AuthContext in request context")
		}
		got = ac
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got != want {
		t.Errorf("AuthContext = %+v, want %+v", got, want)
	}
}

func TestRequireAuthQueryToken(t *testing.T) {
	signer, ms, ac := setupAuthMiddleware(t)

	raw, err := signer.MintSession(ac.UserID, ac.HouseholdID, string(ac.Role), token.PurposeAccess, token.AccessTTL)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	handler := RequireAuth(signer, ms)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/ws?access_token="+raw, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequireAuthSuspendedMembership(t *testing.T) {
	signer, ms, ac := setupAuthMiddleware(t)

	if _, err := ms.UpdateStatus(context.Background(), ac.HouseholdID, ac.UserID, model.StatusActive, model.StatusSuspended); err != nil {
		t.Fatalf("suspend: %v", err)
	}

	// The token is still cryptographically valid; the membership check
	// rejects it anyway.
	raw, err := signer.MintSession(ac.UserID, ac.HouseholdID, string(ac.Role), token.PurposeAccess, token.AccessTTL)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	handler := RequireAuth(signer, ms)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequirePermissionAllowed(t *testing.T) {
	_, ms, ac := setupAuthMiddleware(t)

	ctx := auth.WithAuth(context.Background(), ac)
	req := httptest.NewRequest("GET", "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	handler := RequirePermission(ms, rbac.ModuleTasks, rbac.ActionView, slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequirePermissionForbidden(t *testing.T) {
	_, ms, ac := setupAuthMiddleware(t)

	// Plain members cannot manage memberships.
	ctx := auth.WithAuth(context.Background(), ac)
	req := httptest.NewRequest("POST", "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	handler := RequirePermission(ms, rbac.ModuleMembers, rbac.ActionManage, slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestRequirePermissionExternalWindow(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	hs := store.NewHouseholdStore(db)
	us := store.NewUserStore(db)
	ms := store.NewMembershipStore(db)

	h, _ := hs.Create(ctx, "Test House", "hash")
	u, _ := us.Create(ctx, "Walker", "", "hash", "standard")
	past := time.Now().Add(-time.Hour)
	if _, err := ms.Create(ctx, &model.Membership{
		HouseholdID:  h.ID,
		UserID:       u.ID,
		Role:         string(rbac.RoleExternal),
		Status:       model.StatusActive,
		AccessExpiry: &past,
	}); err != nil {
		t.Fatalf("create membership: %v", err)
	}

	ac := auth.AuthContext{UserID: u.ID, HouseholdID: h.ID, Role: rbac.RoleExternal}
	req := httptest.NewRequest("GET", "/", nil).WithContext(auth.WithAuth(ctx, ac))
	rec := httptest.NewRecorder()

	// Externals may view pets by role, but the expired window wins.
	handler := RequirePermission(ms, rbac.ModulePets, rbac.ActionView, slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestRequirePermissionMalformedWindowIsOpaque(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	hs := store.NewHouseholdStore(db)
	us := store.NewUserStore(db)
	ms := store.NewMembershipStore(db)

	h, _ := hs.Create(ctx, "Test House", "hash")
	u, _ := us.Create(ctx, "Walker", "", "hash", "standard")
	if _, err := ms.Create(ctx, &model.Membership{
		HouseholdID: h.ID,
		UserID:      u.ID,
		Role:        string(rbac.RoleExternal),
		Status:      model.StatusActive,
		TimeStart:   "9am", // unparseable stored value
		TimeEnd:     "17:00",
	}); err != nil {
		t.Fatalf("create membership: %v", err)
	}

	ac := auth.AuthContext{UserID: u.ID, HouseholdID: h.ID, Role: rbac.RoleExternal}
	req := httptest.NewRequest("GET", "/", nil).WithContext(auth.WithAuth(ctx, ac))
	rec := httptest.NewRecorder()

	handler := RequirePermission(ms, rbac.ModulePets, rbac.ActionView, slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	body := strings.TrimSpace(rec.Body.String())
	if body != "Forbidden" {
		t.Errorf("body = %q, want opaque denial", body)
	}
}
