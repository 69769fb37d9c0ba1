package contextkeys

import (
	"context"

	"github.com/okhunjon/sportpay-bot/types"
)

type userKey struct{}
type callbackDataKey struct{}

// WithUser carries the upserted user through the handler chain.
func WithUser(ctx context.Context, user *types.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

func GetUser(ctx context.Context) (*types.User, bool) {
	v := ctx.Value(userKey{})
	if v == nil {
		return nil, false
	}
	return v.(*types.User), true
}

func WithCallbackData(ctx context.Context, data string) context.Context {
	return context.WithValue(ctx, callbackDataKey{}, data)
}

func GetCallbackData(ctx context.Context) (string, bool) {
	v := ctx.Value(callbackDataKey{})
	if v == nil {
		return "", false
	}
	return v.(string), true
}
