package service

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey string

const (
	ctxUserIDKey ctxKey = "userID"
	ctxRoleKey   ctxKey = "role"
	ctxEmailKey  ctxKey = "email"
)

func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxUserIDKey, id)
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	v, ok := ctx.Value(ctxUserIDKey).(uuid.UUID)
	return v, ok
}

type Role string

const (
	RoleCustomer Role = "ROLE_CUSTOMER"
	RoleVendor   Role = "ROLE_VENDOR"
	RoleAdmin    Role = "ROLE_ADMIN"
)

func WithRole(ctx context.Context, r Role) context.Context {
	return context.WithValue(ctx, ctxRoleKey, r)
}

func RoleFromContext(ctx context.Context) (Role, bool) {
	v, ok := ctx.Value(ctxRoleKey).(Role)
	return v, ok
}

// WithEmail stores the verified account email supplied by the identity provider.
func WithEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, ctxEmailKey, email)
}

func EmailFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxEmailKey).(string)
	return v, ok && v != ""
}

// Identity is the caller as seen by the service. Zero UserID means guest.
type Identity struct {
	UserID uuid.UUID
	Role   Role
	Email  string
}

func (i Identity) IsGuest() bool { return i.UserID == uuid.Nil }
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

func identityFromContext(ctx context.Context) Identity {
	var id Identity
	if uid, ok := UserIDFromContext(ctx); ok {
		id.UserID = uid
	}
	if role, ok := RoleFromContext(ctx); ok {
		id.Role = role
	} else if !id.IsGuest() {
		id.Role = RoleCustomer
	}
	id.Email, _ = EmailFromContext(ctx)
	return id
}

func requireAuth(ctx context.Context) (Identity, error) {
	id := identityFromContext(ctx)
	if id.IsGuest() {
		return Identity{}, ErrUnauthorized
	}
	return id, nil
}

func requireAdmin(ctx context.Context) (Identity, error) {
	id, err := requireAuth(ctx)
	if err != nil {
		return Identity{}, err
	}
	if !id.IsAdmin() {
		return Identity{}, ErrForbidden
	}
	return id, nil
}
