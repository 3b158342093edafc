package gateway

import (
	"context"

	"github.com/PVL-Linh/LegalBot-AI/pkg/auth"
)

type ctxKey string

const userKey ctxKey = "user"

func withUser(ctx context.Context, user *auth.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func userFromContext(ctx context.Context) *auth.User {
	if ctx == nil {
		return nil
	}
	if value, ok := ctx.Value(userKey).(*auth.User); ok {
		return value
	}
	return nil
}
