package userctx

import (
	"context"

	"github.com/wkamthorn/campuswallet/internal/models"
)

type ctxKey string

const accountKey ctxKey = "account"

// New returns a context carrying the authenticated account
func New(ctx context.Context, a models.Account) context.Context {
	return context.WithValue(ctx, accountKey, a)
}

// FromContext extracts the authenticated account from the context
func FromContext(ctx context.Context) (models.Account, bool) {
	a, ok := ctx.Value(accountKey).(models.Account)
	return a, ok
}
