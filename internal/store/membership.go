package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/calebdunn/hearth/internal/model"
)

type MembershipStore struct {
	db *sql.DB
}

func NewMembershipStore(db *sql.DB) *MembershipStore {
	return &MembershipStore{db: db}
}

func scanMembership(scanner interface{ Scan(...any) error }) (*model.Membership, error) {
	var m model.Membership
	var tempPinHash sql.NullString
	var tempPinExpiry, accessExpiry, joinedAt sql.NullTime
	var invitedBy sql.NullInt64
	var days, modules string

	err := scanner.Scan(
		&m.ID, &m.HouseholdID, &m.UserID, &m.Role, &m.Status,
		&tempPinHash, &tempPinExpiry, &days, &m.TimeStart, &m.TimeEnd,
		&modules, &accessExpiry, &invitedBy, &joinedAt,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if tempPinHash.Valid {
		m.TempPinHash = &tempPinHash.String
	}
	if tempPinExpiry.Valid {
		m.TempPinExpiry = &tempPinExpiry.Time
	}
	if accessExpiry.Valid {
		m.AccessExpiry = &accessExpiry.Time
	}
	if invitedBy.Valid {
		m.InvitedBy = &invitedBy.Int64
	}
	if joinedAt.Valid {
		m.JoinedAt = &joinedAt.Time
	}
	m.ScheduleDays = splitList(days)
	m.AllowedModules = splitList(modules)
	return &m, nil
}

const membershipCols = `id, household_id, user_id, role, status,
	temp_pin_hash, temp_pin_expiry, schedule_days, time_start, time_end,
	allowed_modules, access_expiry, invited_by, joined_at, created_at, updated_at`

func (s *MembershipStore) Create(ctx context.Context, m *model.Membership) (*model.Membership, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO memberships (household_id, user_id, role, status,
			temp_pin_hash, temp_pin_expiry, schedule_days, time_start, time_end,
			allowed_modules, access_expiry, invited_by, joined_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.HouseholdID, m.UserID, m.Role, m.Status,
		m.TempPinHash, m.TempPinExpiry, joinList(m.ScheduleDays), m.TimeStart, m.TimeEnd,
		joinList(m.AllowedModules), m.AccessExpiry, m.InvitedBy, m.JoinedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert membership: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+membershipCols+` FROM memberships WHERE id = ?`, id)
	return scanMembership(row)
}

func (s *MembershipStore) Get(ctx context.Context, householdID, userID int64) (*model.Membership, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+membershipCols+` FROM memberships WHERE household_id = ? AND user_id = ?`,
		householdID, userID)
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return m, nil
}

// MemberSummary is the public view of a member used by the household picker.
// It never carries any PIN hash.
type MemberSummary struct {
	UserID      int64  `json:"user_id"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Status      string `json:"status"`
	ProfileType string `json:"profile_type"`
}

// ListMembers returns member summaries for a household, filtered to the
// given statuses.
func (s *MembershipStore) ListMembers(ctx context.Context, householdID int64, statuses ...string) ([]MemberSummary, error) {
	if len(statuses) == 0 {
		return nil, fmt.Errorf("list members: no statuses given")
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	args := make([]any, 0, len(statuses)+1)
	args = append(args, householdID)
	for _, st := range statuses {
		args = append(args, st)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT m.user_id, u.name, m.role, m.status, u.profile_type
		 FROM memberships m JOIN users u ON u.id = m.user_id
		 WHERE m.household_id = ? AND m.status IN (`+placeholders+`)
		 ORDER BY u.name`, args...)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []MemberSummary
	for rows.Next() {
		var ms MemberSummary
		if err := rows.Scan(&ms.UserID, &ms.Name, &ms.Role, &ms.Status, &ms.ProfileType); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, ms)
	}
	return members, rows.Err()
}

// Approve flips a pending membership to active, optionally overriding its
// role, and stamps joined_at. Returns false if the membership was not
// pending (already approved, or never existed).
func (s *MembershipStore) Approve(ctx context.Context, householdID, userID int64, role string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE memberships
		 SET status = ?, role = ?, joined_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		 WHERE household_id = ? AND user_id = ? AND status = ?`,
		model.StatusActive, role, householdID, userID, model.StatusPending)
	if err != nil {
		return false, fmt.Errorf("approve membership: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// Activate completes an invitation in one transaction: the membership flips
// to active with its temp-PIN fields cleared, and the user's personal PIN
// hash is set. Returns false if the membership was not invited.
func (s *MembershipStore) Activate(ctx context.Context, householdID, userID int64, personalPinHash string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin activate: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE memberships
		 SET status = ?, temp_pin_hash = NULL, temp_pin_expiry = NULL,
		     joined_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		 WHERE household_id = ? AND user_id = ? AND status = ?`,
		model.StatusActive, householdID, userID, model.StatusInvited)
	if err != nil {
		return false, fmt.Errorf("activate membership: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET personal_pin_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		personalPinHash, userID); err != nil {
		return false, fmt.Errorf("set personal pin: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit activate: %w", err)
	}
	return true, nil
}

// UpdateStatus moves a membership from one status to another. Returns false
// if the membership was not in the expected current status.
func (s *MembershipStore) UpdateStatus(ctx context.Context, householdID, userID int64, from, to string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE memberships SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE household_id = ? AND user_id = ? AND status = ?`,
		to, householdID, userID, from)
	if err != nil {
		return false, fmt.Errorf("update status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *MembershipStore) UpdateRole(ctx context.Context, householdID, userID int64, role string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE memberships SET role = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE household_id = ? AND user_id = ?`,
		role, householdID, userID)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	return nil
}

// DeleteAndReapUser removes a membership and, when that was the user's last
// membership anywhere, removes the user identity too. Both run in a single
// transaction: SQLite allows one writer at a time, so a concurrent invite for
// the same user either commits before this transaction begins (the count
// sees the new membership and the user survives) or queues behind it. If
// onlyStatus is non-empty, the membership is only removed when it is in that
// status. Returns whether the membership was deleted and whether the user
// was reaped with it.
func (s *MembershipStore) DeleteAndReapUser(ctx context.Context, householdID, userID int64, onlyStatus string) (deleted, reaped bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, false, fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	query := `DELETE FROM memberships WHERE household_id = ? AND user_id = ?`
	args := []any{householdID, userID}
	if onlyStatus != "" {
		query += ` AND status = ?`
		args = append(args, onlyStatus)
	}
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, false, fmt.Errorf("delete membership: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return false, false, nil
	}

	var remaining int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memberships WHERE user_id = ?`, userID).Scan(&remaining); err != nil {
		return false, false, fmt.Errorf("count remaining: %w", err)
	}
	if remaining == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID); err != nil {
			return false, false, fmt.Errorf("delete user: %w", err)
		}
		reaped = true
	}

	if err := tx.Commit(); err != nil {
		return false, false, fmt.Errorf("commit delete: %w", err)
	}
	return true, reaped, nil
}
