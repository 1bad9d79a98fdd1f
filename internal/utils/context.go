package utils

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	UserRoleKey contextKey = "role"
)

const (
	RoleUser      = "user"
	RoleAdmin     = "admin"
	RoleAnonymous = "anonymous"
)

// SetUserContext stores the authenticated caller (called by middleware).
func SetUserContext(ctx context.Context, id uuid.UUID, role string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, id)
	ctx = context.WithValue(ctx, UserRoleKey, role)
	return ctx
}

func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return id, ok
}

func GetUserRoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(UserRoleKey).(string)
	return role
}

func IsAdmin(ctx context.Context) bool {
	return GetUserRoleFromContext(ctx) == RoleAdmin
}
