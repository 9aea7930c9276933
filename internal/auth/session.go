package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/calebdunn/hearth/internal/store"
	"github.com/calebdunn/hearth/internal/token"
)

// TokenPair is an access/refresh token pair bound to a user within a
// household.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// SessionManager issues, refreshes and revokes session token pairs. The
// refresh token is a signed JWT whose hash is also stored as a session row;
// both the signature and the row must check out for a refresh to succeed.
type SessionManager struct {
	sessions *store.SessionStore
	signer   *token.Signer
	logger   *slog.Logger
}

func NewSessionManager(sessions *store.SessionStore, signer *token.Signer, logger *slog.Logger) *SessionManager {
	return &SessionManager{sessions: sessions, signer: signer, logger: logger}
}

// Issue mints a fresh token pair and records the session row. Multiple
// concurrent sessions per user are legal (multi-device).
func (m *SessionManager) Issue(ctx context.Context, userID, householdID int64, role string) (*TokenPair, error) {
	access, err := m.signer.MintSession(userID, householdID, role, token.PurposeAccess, token.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("mint access token: %w", err)
	}
	refresh, err := m.signer.MintSession(userID, householdID, role, token.PurposeRefresh, token.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("mint refresh token: %w", err)
	}

	expiresAt := time.Now().Add(token.RefreshTTL)
	if _, err := m.sessions.Create(ctx, userID, householdID, store.HashToken(refresh), expiresAt); err != nil {
		return nil, fmt.Errorf("record session: %w", err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh redeems a refresh token for a rotated pair. Redemption is
// at-most-once: the old session row is revoked with a conditional update, so
// a concurrent replay of the same token loses the race and fails with
// ErrInvalidRefresh. Signature and row state are verified independently.
func (m *SessionManager) Refresh(ctx context.Context, raw string) (*TokenPair, error) {
	claims, err := m.signer.Parse(raw, token.PurposeRefresh)
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			return nil, token.ErrTokenExpired
		}
		return nil, ErrInvalidRefresh
	}

	sess, err := m.sessions.GetByTokenHash(ctx, store.HashToken(raw))
	if err != nil {
		return nil, fmt.Errorf("look up session: %w", err)
	}
	if sess == nil || sess.IsRevoked {
		return nil, ErrInvalidRefresh
	}
	if time.Now().After(sess.ExpiresAt) {
		return nil, token.ErrTokenExpired
	}

	access, err := m.signer.MintSession(sess.UserID, sess.HouseholdID, claims.Role, token.PurposeAccess, token.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("mint access token: %w", err)
	}
	refresh, err := m.signer.MintSession(sess.UserID, sess.HouseholdID, claims.Role, token.PurposeRefresh, token.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("mint refresh token: %w", err)
	}

	expiresAt := time.Now().Add(token.RefreshTTL)
	if _, err := m.sessions.Rotate(ctx, sess.ID, sess.UserID, sess.HouseholdID, store.HashToken(refresh), expiresAt); err != nil {
		if errors.Is(err, store.ErrSessionRevoked) {
			return nil, ErrInvalidRefresh
		}
		return nil, fmt.Errorf("rotate session: %w", err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Logout revokes every live session of the user. Rows stay behind, marked
// revoked, as an audit trail.
func (m *SessionManager) Logout(ctx context.Context, userID int64) error {
	n, err := m.sessions.RevokeAllForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	m.logger.Info("logout", "user_id", userID, "sessions_revoked", n)
	return nil
}

// ForceRevokeAll is the administrative equivalent of Logout, invocable on
// any user.
func (m *SessionManager) ForceRevokeAll(ctx context.Context, userID int64) (int64, error) {
	n, err := m.sessions.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("force revoke: %w", err)
	}
	m.logger.Info("force revoke", "user_id", userID, "sessions_revoked", n)
	return n, nil
}
