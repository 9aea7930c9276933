package model

import "time"

// Membership statuses.
const (
	StatusPending   = "pending"
	StatusInvited   = "invited"
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// Membership is the (household, user) relationship carrying role and status.
// At most one membership exists per (HouseholdID, UserID) pair. TempPinHash
// and TempPinExpiry are only set while status is invited; the schedule,
// module allow-list and access expiry only apply to the external role.
type Membership struct {
	ID             int64      `json:"id"`
	HouseholdID    int64      `json:"household_id"`
	UserID         int64      `json:"user_id"`
	Role           string     `json:"role"`
	Status         string     `json:"status"`
	TempPinHash    *string    `json:"-"`
	TempPinExpiry  *time.Time `json:"-"`
	ScheduleDays   []string   `json:"schedule_days,omitempty"`
	TimeStart      string     `json:"time_start,omitempty"`
	TimeEnd        string     `json:"time_end,omitempty"`
	AllowedModules []string   `json:"allowed_modules,omitempty"`
	AccessExpiry   *time.Time `json:"access_expiry,omitempty"`
	InvitedBy      *int64     `json:"invited_by,omitempty"`
	JoinedAt       *time.Time `json:"joined_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
