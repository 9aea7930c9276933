package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/calebdunn/hearth/internal/model"
)

// ErrSessionRevoked is returned by Rotate when the session was already
// revoked, including when a concurrent rotation of the same token won the
// race.
var ErrSessionRevoked = errors.New("session already revoked")

type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// HashToken computes the SHA-256 hash of a raw token for storage. Raw
// refresh tokens are never stored.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

func scanSession(scanner interface{ Scan(...any) error }) (*model.Session, error) {
	var s model.Session
	var revoked int
	err := scanner.Scan(&s.ID, &s.UserID, &s.HouseholdID, &s.TokenHash,
		&revoked, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.IsRevoked = revoked != 0
	return &s, nil
}

const sessionCols = `id, user_id, household_id, token_hash, is_revoked, expires_at, created_at`

func (s *SessionStore) Create(ctx context.Context, userID, householdID int64, tokenHash string, expiresAt time.Time) (*model.Session, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (user_id, household_id, token_hash, expires_at) VALUES (?, ?, ?, ?)`,
		userID, householdID, tokenHash, expiresAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

func (s *SessionStore) GetByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionCols+` FROM sessions WHERE token_hash = ?`, tokenHash)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// Rotate revokes the old session and inserts its replacement in one
// transaction. The revoke is a conditional update on is_revoked = 0, so of
// two concurrent rotations of the same session exactly one succeeds; the
// loser gets ErrSessionRevoked. No row is ever deleted.
func (s *SessionStore) Rotate(ctx context.Context, oldID, userID, householdID int64, tokenHash string, expiresAt time.Time) (*model.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin rotate: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE sessions SET is_revoked = 1 WHERE id = ? AND is_revoked = 0`, oldID)
	if err != nil {
		return nil, fmt.Errorf("revoke old session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrSessionRevoked
	}

	insert, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (user_id, household_id, token_hash, expires_at) VALUES (?, ?, ?, ?)`,
		userID, householdID, tokenHash, expiresAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("insert rotated session: %w", err)
	}
	id, err := insert.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit rotate: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// RevokeAllForUser marks every non-revoked session of a user revoked and
// returns how many were affected. Used for logout and administrative
// force-revoke.
func (s *SessionStore) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET is_revoked = 1 WHERE user_id = ? AND is_revoked = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// CountActiveForUser returns the number of live (non-revoked, unexpired)
// sessions a user holds.
func (s *SessionStore) CountActiveForUser(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE user_id = ? AND is_revoked = 0 AND expires_at > ?`,
		userID, time.Now().UTC()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active sessions: %w", err)
	}
	return n, nil
}
