package auth

import (
	"context"

	"github.com/calebdunn/hearth/internal/rbac"
)

type contextKey struct{}

// AuthContext is the identity attached to an authenticated request. The
// household identifier here comes from verified session claims; callers must
// scope every action to it and may use a client-supplied household id only
// to detect and reject a mismatch (admins excepted).
type AuthContext struct {
	UserID      int64
	HouseholdID int64
	Role        rbac.Role
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func HouseholdID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.HouseholdID
}

func UserID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.UserID
}

func IsAdmin(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Role == rbac.RoleAdmin
}
