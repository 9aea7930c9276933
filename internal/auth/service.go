// Package auth implements the identity core: two-phase household/personal
// PIN login, session token lifecycle, membership state transitions and the
// rank guards protecting them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/calebdunn/hearth/internal/credential"
	"github.com/calebdunn/hearth/internal/events"
	"github.com/calebdunn/hearth/internal/model"
	"github.com/calebdunn/hearth/internal/rbac"
	"github.com/calebdunn/hearth/internal/store"
	"github.com/calebdunn/hearth/internal/token"
)

// tempPinValidity is how long an invitation's temporary PIN stays usable.
const tempPinValidity = 7 * 24 * time.Hour

// Service orchestrates the login protocol and membership lifecycle over the
// stores, the PIN hasher, the token signer and the session manager.
type Service struct {
	households  *store.HouseholdStore
	users       *store.UserStore
	memberships *store.MembershipStore
	sessions    *SessionManager
	hasher      *credential.Hasher
	signer      *token.Signer
	publisher   events.Publisher
	logger      *slog.Logger
}

func NewService(
	households *store.HouseholdStore,
	users *store.UserStore,
	memberships *store.MembershipStore,
	sessions *SessionManager,
	hasher *credential.Hasher,
	signer *token.Signer,
	publisher events.Publisher,
	logger *slog.Logger,
) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		households:  households,
		users:       users,
		memberships: memberships,
		sessions:    sessions,
		hasher:      hasher,
		signer:      signer,
		publisher:   publisher,
		logger:      logger,
	}
}

// HouseholdSelection is the result of the first login step.
type HouseholdSelection struct {
	HouseholdToken string                `json:"household_token"`
	HouseholdName  string                `json:"household_name"`
	Members        []store.MemberSummary `json:"members"`
}

// UserView is the public shape of an authenticated user.
type UserView struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	ProfileType string `json:"profile_type"`
}

// LoginResult is a session token pair plus the public user view.
type LoginResult struct {
	TokenPair
	User UserView `json:"user"`
}

// RegistrationResult reports a membership's identifier and status after
// self-registration or approval.
type RegistrationResult struct {
	UserID int64  `json:"user_id"`
	Status string `json:"status"`
}

// InviteResult returns the new member's id together with the temporary PIN
// the inviter hands over out of band.
type InviteResult struct {
	UserID  int64  `json:"user_id"`
	TempPin string `json:"temp_pin"`
}

// SelectHousehold verifies the household PIN and, on success, returns a
// short-lived household token plus the member list for the user picker.
// Pending and suspended members are never exposed.
func (s *Service) SelectHousehold(ctx context.Context, householdID int64, pin string) (*HouseholdSelection, error) {
	h, err := s.households.GetByID(ctx, householdID)
	if err != nil {
		return nil, fmt.Errorf("select household: %w", err)
	}
	if h == nil {
		return nil, ErrHouseholdNotFound
	}

	ok, err := s.hasher.Verify(ctx, pin, h.PinHash)
	if err != nil {
		return nil, fmt.Errorf("verify household pin: %w", err)
	}
	if !ok {
		return nil, ErrInvalidPin
	}

	houseToken, err := s.signer.MintHousehold(h.ID)
	if err != nil {
		return nil, fmt.Errorf("mint household token: %w", err)
	}

	members, err := s.memberships.ListMembers(ctx, h.ID, model.StatusActive, model.StatusInvited)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	return &HouseholdSelection{
		HouseholdToken: houseToken,
		HouseholdName:  h.Name,
		Members:        members,
	}, nil
}

// LoginUser is the second login step. An invited member presenting a valid
// temporary PIN does not get a session; they get an ActivationRequiredError
// carrying a short-lived activation token instead.
func (s *Service) LoginUser(ctx context.Context, userID int64, pin, householdToken string) (*LoginResult, error) {
	claims, err := s.signer.Parse(householdToken, token.PurposeHousehold)
	if err != nil {
		return nil, ErrInvalidHouseToken
	}
	householdID := claims.HouseholdID

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	m, err := s.memberships.Get(ctx, householdID, userID)
	if err != nil {
		return nil, fmt.Errorf("load membership: %w", err)
	}
	if m == nil {
		return nil, ErrMembershipNotFound
	}

	switch m.Status {
	case model.StatusPending:
		return nil, ErrPendingApproval
	case model.StatusSuspended:
		return nil, ErrSuspended
	case model.StatusInvited:
		return nil, s.loginInvited(ctx, m, pin)
	}

	ok, err := s.hasher.Verify(ctx, pin, user.PersonalPinHash)
	if err != nil {
		return nil, fmt.Errorf("verify personal pin: %w", err)
	}
	if !ok {
		return nil, ErrInvalidPin
	}

	// An expired external account cannot log in at all; the day/time window
	// is enforced per request, not here.
	if err := rbac.CheckExpiry(m, time.Now()); err != nil {
		return nil, err
	}

	pair, err := s.sessions.Issue(ctx, user.ID, householdID, m.Role)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}

	s.logger.Info("login", "user_id", user.ID, "household_id", householdID, "role", m.Role)
	return &LoginResult{
		TokenPair: *pair,
		User:      UserView{ID: user.ID, Name: user.Name, Role: m.Role, ProfileType: user.ProfileType},
	}, nil
}

// loginInvited handles the invited branch of LoginUser. The returned error
// is either ErrInvalidPin or an *ActivationRequiredError.
func (s *Service) loginInvited(ctx context.Context, m *model.Membership, pin string) error {
	if m.TempPinHash == nil {
		return ErrInvalidPin
	}
	if m.TempPinExpiry != nil && time.Now().After(*m.TempPinExpiry) {
		s.logger.Warn("expired invitation pin presented", "user_id", m.UserID, "household_id", m.HouseholdID)
		return ErrInvalidPin
	}

	ok, err := s.hasher.Verify(ctx, pin, *m.TempPinHash)
	if err != nil {
		return fmt.Errorf("verify temp pin: %w", err)
	}
	if !ok {
		return ErrInvalidPin
	}

	activationToken, err := s.signer.MintActivation(m.UserID, m.HouseholdID)
	if err != nil {
		return fmt.Errorf("mint activation token: %w", err)
	}
	return &ActivationRequiredError{ActivationToken: activationToken}
}

// RefreshToken delegates to the session manager.
func (s *Service) RefreshToken(ctx context.Context, raw string) (*TokenPair, error) {
	return s.sessions.Refresh(ctx, raw)
}

// Logout delegates to the session manager.
func (s *Service) Logout(ctx context.Context, userID int64) error {
	return s.sessions.Logout(ctx, userID)
}

// ActivateAccount redeems an activation token: the member sets their first
// personal PIN, the membership flips to active with its temporary PIN
// cleared, and a session is issued just like a successful login. The old
// temporary PIN never authenticates again.
func (s *Service) ActivateAccount(ctx context.Context, activationToken, newPin string) (*LoginResult, error) {
	claims, err := s.signer.Parse(activationToken, token.PurposeActivation)
	switch {
	case err == nil:
	case errors.Is(err, token.ErrTokenExpired):
		return nil, token.ErrTokenExpired
	case errors.Is(err, token.ErrWrongPurpose):
		return nil, ErrInvalidAction
	default:
		return nil, ErrInvalidToken
	}

	m, err := s.memberships.Get(ctx, claims.HouseholdID, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("load membership: %w", err)
	}
	if m == nil {
		return nil, ErrMembershipNotFound
	}

	pinHash, err := s.hasher.Hash(ctx, newPin)
	if err != nil {
		return nil, fmt.Errorf("hash new pin: %w", err)
	}

	ok, err := s.memberships.Activate(ctx, claims.HouseholdID, claims.UserID, pinHash)
	if err != nil {
		return nil, fmt.Errorf("activate membership: %w", err)
	}
	if !ok {
		return nil, ErrStateConflict
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("load activated user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	pair, err := s.sessions.Issue(ctx, user.ID, claims.HouseholdID, m.Role)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}

	s.publisher.Publish(events.NewEvent("member", "activated", claims.HouseholdID, user.ID))
	s.logger.Info("account activated", "user_id", user.ID, "household_id", claims.HouseholdID)

	return &LoginResult{
		TokenPair: *pair,
		User:      UserView{ID: user.ID, Name: user.Name, Role: m.Role, ProfileType: user.ProfileType},
	}, nil
}

// SelfRegister creates a user identity and a pending membership with the
// member role. No tokens are issued; an admin or responsible member must
// approve the request first.
func (s *Service) SelfRegister(ctx context.Context, name, pin string, householdID int64) (*RegistrationResult, error) {
	h, err := s.households.GetByID(ctx, householdID)
	if err != nil {
		return nil, fmt.Errorf("load household: %w", err)
	}
	if h == nil {
		return nil, ErrHouseholdNotFound
	}

	pinHash, err := s.hasher.Hash(ctx, pin)
	if err != nil {
		return nil, fmt.Errorf("hash pin: %w", err)
	}

	user, err := s.users.Create(ctx, name, "", pinHash, "standard")
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	if _, err := s.memberships.Create(ctx, &model.Membership{
		HouseholdID: householdID,
		UserID:      user.ID,
		Role:        string(rbac.RoleMember),
		Status:      model.StatusPending,
	}); err != nil {
		return nil, fmt.Errorf("create membership: %w", err)
	}

	s.publisher.Publish(events.NewEvent("member", "registered", householdID, user.ID))
	s.logger.Info("self-registration", "user_id", user.ID, "household_id", householdID)

	return &RegistrationResult{UserID: user.ID, Status: model.StatusPending}, nil
}

// requireManager checks the operation-level gate shared by the
// administrative operations: the actor must be at least responsible, and may
// only act on their own household unless they are an admin.
func (s *Service) requireManager(actor AuthContext, householdID int64) error {
	if !rbac.HasMinRole(actor.Role, rbac.RoleResponsible) {
		return ErrForbidden
	}
	if householdID != actor.HouseholdID && actor.Role != rbac.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

// ApproveRequest flips a pending membership to active, optionally
// overriding the requested role subject to the rank guard. Approving the
// same request twice fails with ErrRequestNotFound.
func (s *Service) ApproveRequest(ctx context.Context, actor AuthContext, householdID, userID int64, roleOverride string) (*RegistrationResult, error) {
	if err := s.requireManager(actor, householdID); err != nil {
		return nil, err
	}

	m, err := s.memberships.Get(ctx, householdID, userID)
	if err != nil {
		return nil, fmt.Errorf("load membership: %w", err)
	}
	if m == nil || m.Status != model.StatusPending {
		return nil, ErrRequestNotFound
	}

	role := m.Role
	if roleOverride != "" {
		role = roleOverride
	}
	if !rbac.CanAssignRole(actor.Role, rbac.Role(role)) {
		return nil, ErrForbidden
	}

	ok, err := s.memberships.Approve(ctx, householdID, userID, role)
	if err != nil {
		return nil, fmt.Errorf("approve membership: %w", err)
	}
	if !ok {
		return nil, ErrRequestNotFound
	}

	s.publisher.Publish(events.NewEvent("member", "approved", householdID, userID))
	s.logger.Info("request approved", "user_id", userID, "household_id", householdID, "role", role, "approved_by", actor.UserID)

	return &RegistrationResult{UserID: userID, Status: model.StatusActive}, nil
}

// RejectRequest deletes a pending membership. When that was the user's last
// membership anywhere, the user identity is deleted with it.
func (s *Service) RejectRequest(ctx context.Context, actor AuthContext, householdID, userID int64) error {
	if err := s.requireManager(actor, householdID); err != nil {
		return err
	}

	deleted, reaped, err := s.memberships.DeleteAndReapUser(ctx, householdID, userID, model.StatusPending)
	if err != nil {
		return fmt.Errorf("reject request: %w", err)
	}
	if !deleted {
		return ErrRequestNotFound
	}

	s.publisher.Publish(events.NewEvent("member", "rejected", householdID, userID))
	s.logger.Info("request rejected", "user_id", userID, "household_id", householdID, "identity_reaped", reaped, "rejected_by", actor.UserID)
	return nil
}

// InviteMember creates a user identity with a placeholder personal PIN and
// an invited membership carrying the hashed temporary PIN, valid for seven
// days. The rank guard applies to the invited role.
func (s *Service) InviteMember(ctx context.Context, actor AuthContext, householdID int64, name, role, tempPin string) (*InviteResult, error) {
	if err := s.requireManager(actor, householdID); err != nil {
		return nil, err
	}
	if !rbac.IsValidRole(rbac.Role(role)) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrForbidden, role)
	}
	if !rbac.CanAssignRole(actor.Role, rbac.Role(role)) {
		return nil, ErrForbidden
	}

	tempHash, err := s.hasher.Hash(ctx, tempPin)
	if err != nil {
		return nil, fmt.Errorf("hash temp pin: %w", err)
	}

	// The personal PIN is set at activation; until then the slot holds an
	// unguessable placeholder that can never verify.
	placeholder, err := s.hasher.Hash(ctx, uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("hash placeholder pin: %w", err)
	}

	user, err := s.users.Create(ctx, name, "", placeholder, "standard")
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	expiry := time.Now().Add(tempPinValidity)
	if _, err := s.memberships.Create(ctx, &model.Membership{
		HouseholdID:   householdID,
		UserID:        user.ID,
		Role:          role,
		Status:        model.StatusInvited,
		TempPinHash:   &tempHash,
		TempPinExpiry: &expiry,
		InvitedBy:     &actor.UserID,
	}); err != nil {
		return nil, fmt.Errorf("create membership: %w", err)
	}

	s.publisher.Publish(events.NewEvent("member", "invited", householdID, user.ID))
	s.logger.Info("member invited", "user_id", user.ID, "household_id", householdID, "role", role, "invited_by", actor.UserID)

	return &InviteResult{UserID: user.ID, TempPin: tempPin}, nil
}

// SuspendMember moves an active membership to suspended and revokes the
// member's sessions, so the suspension takes effect immediately.
func (s *Service) SuspendMember(ctx context.Context, actor AuthContext, householdID, userID int64) error {
	if err := s.guardExisting(ctx, actor, householdID, userID); err != nil {
		return err
	}

	ok, err := s.memberships.UpdateStatus(ctx, householdID, userID, model.StatusActive, model.StatusSuspended)
	if err != nil {
		return fmt.Errorf("suspend member: %w", err)
	}
	if !ok {
		return ErrStateConflict
	}

	if _, err := s.sessions.ForceRevokeAll(ctx, userID); err != nil {
		return err
	}

	s.publisher.Publish(events.NewEvent("member", "suspended", householdID, userID))
	return nil
}

// ResumeMember moves a suspended membership back to active.
func (s *Service) ResumeMember(ctx context.Context, actor AuthContext, householdID, userID int64) error {
	if err := s.guardExisting(ctx, actor, householdID, userID); err != nil {
		return err
	}

	ok, err := s.memberships.UpdateStatus(ctx, householdID, userID, model.StatusSuspended, model.StatusActive)
	if err != nil {
		return fmt.Errorf("resume member: %w", err)
	}
	if !ok {
		return ErrStateConflict
	}

	s.publisher.Publish(events.NewEvent("member", "resumed", householdID, userID))
	return nil
}

// RemoveMember deletes a membership (any non-pending status) and revokes the
// member's sessions. The user identity is reaped when no memberships remain.
func (s *Service) RemoveMember(ctx context.Context, actor AuthContext, householdID, userID int64) error {
	if err := s.guardExisting(ctx, actor, householdID, userID); err != nil {
		return err
	}

	deleted, reaped, err := s.memberships.DeleteAndReapUser(ctx, householdID, userID, "")
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if !deleted {
		return ErrMembershipNotFound
	}

	if _, err := s.sessions.ForceRevokeAll(ctx, userID); err != nil {
		return err
	}

	s.publisher.Publish(events.NewEvent("member", "removed", householdID, userID))
	s.logger.Info("member removed", "user_id", userID, "household_id", householdID, "identity_reaped", reaped, "removed_by", actor.UserID)
	return nil
}

// ChangeRole reassigns a membership's role, subject to both rank guards:
// the actor must outrank the current role and be allowed to assign the new
// one. Sessions are revoked because their claims carry the old role.
func (s *Service) ChangeRole(ctx context.Context, actor AuthContext, householdID, userID int64, newRole string) error {
	if err := s.requireManager(actor, householdID); err != nil {
		return err
	}

	m, err := s.memberships.Get(ctx, householdID, userID)
	if err != nil {
		return fmt.Errorf("load membership: %w", err)
	}
	if m == nil {
		return ErrMembershipNotFound
	}
	if !rbac.CanManageMember(actor.Role, rbac.Role(m.Role)) {
		return ErrForbidden
	}
	if !rbac.IsValidRole(rbac.Role(newRole)) || !rbac.CanAssignRole(actor.Role, rbac.Role(newRole)) {
		return ErrForbidden
	}

	if err := s.memberships.UpdateRole(ctx, householdID, userID, newRole); err != nil {
		return fmt.Errorf("change role: %w", err)
	}
	if _, err := s.sessions.ForceRevokeAll(ctx, userID); err != nil {
		return err
	}

	s.publisher.Publish(events.NewEvent("member", "role_changed", householdID, userID))
	return nil
}

// ChangeHouseholdPin rotates the household PIN. Only admins may rotate it,
// and the current PIN must verify first.
func (s *Service) ChangeHouseholdPin(ctx context.Context, actor AuthContext, householdID int64, currentPin, newPin string) error {
	if actor.Role != rbac.RoleAdmin {
		return ErrForbidden
	}

	h, err := s.households.GetByID(ctx, householdID)
	if err != nil {
		return fmt.Errorf("load household: %w", err)
	}
	if h == nil {
		return ErrHouseholdNotFound
	}

	ok, err := s.hasher.Verify(ctx, currentPin, h.PinHash)
	if err != nil {
		return fmt.Errorf("verify household pin: %w", err)
	}
	if !ok {
		return ErrInvalidPin
	}

	pinHash, err := s.hasher.Hash(ctx, newPin)
	if err != nil {
		return fmt.Errorf("hash new pin: %w", err)
	}
	if err := s.households.UpdatePin(ctx, householdID, pinHash); err != nil {
		return fmt.Errorf("rotate household pin: %w", err)
	}

	s.logger.Info("household pin rotated", "household_id", householdID, "changed_by", actor.UserID)
	return nil
}

// ChangePersonalPin lets an authenticated member set a new personal PIN
// after verifying the current one.
func (s *Service) ChangePersonalPin(ctx context.Context, userID int64, currentPin, newPin string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	ok, err := s.hasher.Verify(ctx, currentPin, user.PersonalPinHash)
	if err != nil {
		return fmt.Errorf("verify personal pin: %w", err)
	}
	if !ok {
		return ErrInvalidPin
	}

	pinHash, err := s.hasher.Hash(ctx, newPin)
	if err != nil {
		return fmt.Errorf("hash new pin: %w", err)
	}
	if err := s.users.UpdatePersonalPin(ctx, userID, pinHash); err != nil {
		return fmt.Errorf("update personal pin: %w", err)
	}

	s.logger.Info("personal pin changed", "user_id", userID)
	return nil
}

// guardExisting runs the operation gate plus the rank guard against the
// target membership's current role.
func (s *Service) guardExisting(ctx context.Context, actor AuthContext, householdID, userID int64) error {
	if err := s.requireManager(actor, householdID); err != nil {
		return err
	}
	m, err := s.memberships.Get(ctx, householdID, userID)
	if err != nil {
		return fmt.Errorf("load membership: %w", err)
	}
	if m == nil {
		return ErrMembershipNotFound
	}
	if !rbac.CanManageMember(actor.Role, rbac.Role(m.Role)) {
		return ErrForbidden
	}
	return nil
}
