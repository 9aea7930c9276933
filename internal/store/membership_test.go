package store

import (
	"context"
	"testing"
	"time"

	"github.com/calebdunn/hearth/internal/database"
	"github.com/calebdunn/hearth/internal/model"
)

func setupStores(t *testing.T) (*HouseholdStore, *UserStore, *MembershipStore, *SessionStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewHouseholdStore(db), NewUserStore(db), NewMembershipStore(db), NewSessionStore(db)
}

func seedMember(t *testing.T, hs *HouseholdStore, us *UserStore, ms *MembershipStore, status string) (*model.Household, *model.User, *model.Membership) {
	t.Helper()
	ctx := context.Background()

	h, err := hs.Create(ctx, "Baker Street", "house-hash")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	u, err := us.Create(ctx, "Alice", "", "pin-hash", "standard")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	m, err := ms.Create(ctx, &model.Membership{
		HouseholdID: h.ID,
		UserID:      u.ID,
		Role:        "member",
		Status:      status,
	})
	if err != nil {
		t.Fatalf("create membership: %v", err)
	}
	return h, u, m
}

func TestMembershipUniquePair(t *testing.T) {
	hs, us, ms, _ := setupStores(t)
	h, u, _ := seedMember(t, hs, us, ms, model.StatusActive)

	_, err := ms.Create(context.Background(), &model.Membership{
		HouseholdID: h.ID,
		UserID:      u.ID,
		Role:        "member",
		Status:      model.StatusPending,
	})
	if err == nil {
		t.Fatal("second membership for the same (household, user) should fail")
	}
}

func TestMembershipRoundTrip(t *testing.T) {
	hs, us, ms, _ := setupStores(t)
	ctx := context.Background()

	h, err := hs.Create(ctx, "Baker Street", "house-hash")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	u, err := us.Create(ctx, "Cleaner", "", "pin-hash", "standard")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	expiry := time.Now().Add(30 * 24 * time.Hour).UTC().Truncate(time.Second)
	created, err := ms.Create(ctx, &model.Membership{
		HouseholdID:    h.ID,
		UserID:         u.ID,
		Role:           "external",
		Status:         model.StatusActive,
		ScheduleDays:   []string{"monday", "thursday"},
		TimeStart:      "08:00",
		TimeEnd:        "18:00",
		AllowedModules: []string{"tasks", "alerts"},
		AccessExpiry:   &expiry,
	})
	if err != nil {
		t.Fatalf("create membership: %v", err)
	}

	got, err := ms.Get(ctx, h.ID, u.ID)
	if err != nil {
		t.Fatalf("get membership: %v", err)
	}
	if got == nil {
		t.Fatal("expected membership")
	}
	if got.ID != created.ID {
		t.Errorf("id = %d, want %d", got.ID, created.ID)
	}
	if len(got.ScheduleDays) != 2 || got.ScheduleDays[0] != "monday" {
		t.Errorf("schedule days = %v", got.ScheduleDays)
	}
	if len(got.AllowedModules) != 2 || got.AllowedModules[1] != "alerts" {
		t.Errorf("allowed modules = %v", got.AllowedModules)
	}
	if got.AccessExpiry == nil {
		t.Error("access expiry should round-trip")
	}
}

func TestApproveOnlyPending(t *testing.T) {
	hs, us, ms, _ := setupStores(t)
	h, u, _ := seedMember(t, hs, us, ms, model.StatusPending)
	ctx := context.Background()

	ok, err := ms.Approve(ctx, h.ID, u.ID, "member")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !ok {
		t.Fatal("first approve should succeed")
	}

	got, _ := ms.Get(ctx, h.ID, u.ID)
	if got.Status != model.StatusActive {
		t.Errorf("status = %q, want active", got.Status)
	}
	if got.JoinedAt == nil {
		t.Error("joined_at should be stamped")
	}

	ok, err = ms.Approve(ctx, h.ID, u.ID, "member")
	if err != nil {
		t.Fatalf("second approve: %v", err)
	}
	if ok {
		t.Error("approving a non-pending membership should report false")
	}
}

func TestActivateClearsTempPin(t *testing.T) {
	hs, us, ms, _ := setupStores(t)
	ctx := context.Background()

	h, _ := hs.Create(ctx, "Baker Street", "house-hash")
	u, _ := us.Create(ctx, "Invitee", "", "placeholder", "standard")

	tempHash := "temp-hash"
	expiry := time.Now().Add(7 * 24 * time.Hour)
	if _, err := ms.Create(ctx, &model.Membership{
		HouseholdID:   h.ID,
		UserID:        u.ID,
		Role:          "member",
		Status:        model.StatusInvited,
		TempPinHash:   &tempHash,
		TempPinExpiry: &expiry,
	}); err != nil {
		t.Fatalf("create membership: %v", err)
	}

	ok, err := ms.Activate(ctx, h.ID, u.ID, "new-personal-hash")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if !ok {
		t.Fatal("activate should succeed for invited membership")
	}

	got, _ := ms.Get(ctx, h.ID, u.ID)
	if got.Status != model.StatusActive {
		t.Errorf("status = %q, want active", got.Status)
	}
	if got.TempPinHash != nil || got.TempPinExpiry != nil {
		t.Error("temp pin fields must be cleared on activation")
	}

	user, _ := us.GetByID(ctx, u.ID)
	if user.PersonalPinHash != "new-personal-hash" {
		t.Errorf("personal pin hash = %q", user.PersonalPinHash)
	}

	ok, err = ms.Activate(ctx, h.ID, u.ID, "another-hash")
	if err != nil {
		t.Fatalf("re-activate: %v", err)
	}
	if ok {
		t.Error("activation is one-way; second call should report false")
	}
}

func TestDeleteAndReapUser(t *testing.T) {
	hs, us, ms, _ := setupStores(t)
	h, u, _ := seedMember(t, hs, us, ms, model.StatusPending)
	ctx := context.Background()

	deleted, reaped, err := ms.DeleteAndReapUser(ctx, h.ID, u.ID, model.StatusPending)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted || !reaped {
		t.Errorf("deleted=%v reaped=%v, want both true", deleted, reaped)
	}

	user, err := us.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user != nil {
		t.Error("user with no remaining memberships should be deleted")
	}
}

func TestDeleteKeepsUserWithOtherMemberships(t *testing.T) {
	hs, us, ms, _ := setupStores(t)
	h, u, _ := seedMember(t, hs, us, ms, model.StatusActive)
	ctx := context.Background()

	h2, err := hs.Create(ctx, "Second Home", "hash")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	if _, err := ms.Create(ctx, &model.Membership{
		HouseholdID: h2.ID, UserID: u.ID, Role: "member", Status: model.StatusActive,
	}); err != nil {
		t.Fatalf("create second membership: %v", err)
	}

	deleted, reaped, err := ms.DeleteAndReapUser(ctx, h.ID, u.ID, "")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted {
		t.Error("membership should be deleted")
	}
	if reaped {
		t.Error("user still has a membership elsewhere and must survive")
	}

	user, _ := us.GetByID(ctx, u.ID)
	if user == nil {
		t.Error("user should still exist")
	}
}

func TestDeleteStatusMismatch(t *testing.T) {
	hs, us, ms, _ := setupStores(t)
	h, u, _ := seedMember(t, hs, us, ms, model.StatusActive)

	deleted, _, err := ms.DeleteAndReapUser(context.Background(), h.ID, u.ID, model.StatusPending)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted {
		t.Error("active membership must not match a pending-only delete")
	}
}

func TestListMembersFiltersStatuses(t *testing.T) {
	hs, us, ms, _ := setupStores(t)
	ctx := context.Background()

	h, _ := hs.Create(ctx, "Baker Street", "house-hash")
	for _, tc := range []struct {
		name, status string
	}{
		{"Active Alice", model.StatusActive},
		{"Invited Ivan", model.StatusInvited},
		{"Pending Pat", model.StatusPending},
		{"Suspended Sam", model.StatusSuspended},
	} {
		u, err := us.Create(ctx, tc.name, "", "hash", "standard")
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		if _, err := ms.Create(ctx, &model.Membership{
			HouseholdID: h.ID, UserID: u.ID, Role: "member", Status: tc.status,
		}); err != nil {
			t.Fatalf("create membership: %v", err)
		}
	}

	members, err := ms.ListMembers(ctx, h.ID, model.StatusActive, model.StatusInvited)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("got %d members, want 2", len(members))
	}
	for _, m := range members {
		if m.Status == model.StatusPending || m.Status == model.StatusSuspended {
			t.Errorf("status %q must never be listed", m.Status)
		}
	}
}
