// Package store persists households, users, memberships and sessions in
// SQLite. Stores return (nil, nil) for rows that do not exist; errors are
// reserved for real failures.
package store

import "strings"

// joinList and splitList pack string slices into a single TEXT column.
// Values never contain commas (weekday names, module names).
func joinList(values []string) string {
	return strings.Join(values, ",")
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
