package auth

import (
	"context"

	"webwatch/internal/model"
)

type userKey struct{}
type visitorKey struct{}

// WithUserID records the authenticated user on the request context.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userKey{}).(int64)
	return id, ok
}

// WithVisitorToken records a validated visitor token on the request context.
func WithVisitorToken(ctx context.Context, t *model.VisitorToken) context.Context {
	return context.WithValue(ctx, visitorKey{}, t)
}

func VisitorToken(ctx context.Context) (*model.VisitorToken, bool) {
	t, ok := ctx.Value(visitorKey{}).(*model.VisitorToken)
	return t, ok && t != nil
}

// Identity resolves the caller's owner identity: an authenticated user if
// present, otherwise the visitor token. Returns false when neither is set.
func Identity(ctx context.Context) (model.Owner, bool) {
	if id, ok := UserID(ctx); ok {
		return model.OwnerUser(id), true
	}
	if t, ok := VisitorToken(ctx); ok {
		return model.OwnerVisitor(t.Token), true
	}
	return model.Owner{}, false
}
