package rbac

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/calebdunn/hearth/internal/model"
)

// Access window denial reasons.
var (
	ErrAccessExpired    = errors.New("access has expired")
	ErrOutsideSchedule  = errors.New("outside allowed schedule")
	ErrModuleRestricted = errors.New("module not allowed for this member")
)

// EvaluateWindow applies the access-window constraints of an external
// membership: expiry date, day-of-week schedule, time-of-day window, then
// module allow-list, short-circuiting on the first failure. Every role other
// than external bypasses unconditionally. A window whose start is after its
// end (a midnight-spanning window) is not supported and always denies with
// ErrOutsideSchedule rather than silently wrapping.
func EvaluateWindow(m *model.Membership, module Module, now time.Time) error {
	if Role(m.Role) != RoleExternal {
		return nil
	}

	if err := CheckExpiry(m, now); err != nil {
		return err
	}

	if len(m.ScheduleDays) > 0 {
		day := strings.ToLower(now.Weekday().String())
		if !containsFold(m.ScheduleDays, day) {
			return ErrOutsideSchedule
		}
	}

	if m.TimeStart != "" && m.TimeEnd != "" {
		start, err := parseMinuteOfDay(m.TimeStart)
		if err != nil {
			return fmt.Errorf("invalid time_start: %w", err)
		}
		end, err := parseMinuteOfDay(m.TimeEnd)
		if err != nil {
			return fmt.Errorf("invalid time_end: %w", err)
		}
		if start > end {
			return ErrOutsideSchedule
		}
		minute := now.Hour()*60 + now.Minute()
		if minute < start || minute > end {
			return ErrOutsideSchedule
		}
	}

	if len(m.AllowedModules) > 0 && !containsFold(m.AllowedModules, string(module)) {
		return ErrModuleRestricted
	}

	return nil
}

// CheckExpiry applies only the access-expiry constraint. Login uses this
// alone: an expired external account cannot authenticate at all, while the
// schedule and module checks are evaluated per request.
func CheckExpiry(m *model.Membership, now time.Time) error {
	if Role(m.Role) != RoleExternal {
		return nil
	}
	if m.AccessExpiry != nil && now.After(*m.AccessExpiry) {
		return ErrAccessExpired
	}
	return nil
}

// parseMinuteOfDay parses "HH:MM" into a minute-of-day offset.
func parseMinuteOfDay(s string) (int, error) {
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("malformed time %q", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("malformed hour in %q", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("malformed minute in %q", s)
	}
	return hour*60 + minute, nil
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
