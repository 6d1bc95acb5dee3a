package auth

import (
	"context"

	"github.com/dukerupert/chorewheel/internal/model"
)

type contextKey struct{}

// AuthContext is the verified identity attached to a request. User is loaded
// fresh from the store for every request, so its household reference is
// current.
type AuthContext struct {
	User model.User
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func UserID(ctx context.Context) string {
	ac, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return ac.User.ID
}

// HouseholdID returns the caller's household, or "" if they have none.
func HouseholdID(ctx context.Context) string {
	ac, ok := FromContext(ctx)
	if !ok || ac.User.HouseholdID == nil {
		return ""
	}
	return *ac.User.HouseholdID
}
