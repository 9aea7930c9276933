package model

import "time"

// Session is a revocable refresh-token record. Rows are never deleted;
// revoked and expired rows remain as an audit trail.
type Session struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	HouseholdID int64     `json:"household_id"`
	TokenHash   string    `json:"-"`
	IsRevoked   bool      `json:"is_revoked"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}
