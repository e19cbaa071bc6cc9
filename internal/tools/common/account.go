package common

import (
	"context"

	"github.com/mvollmer/tablebook/internal/google"
)

type contextKey string

const accountContextKey contextKey = "account"

// ContextWithAccount returns a context carrying the backend account the
// transport resolved for this request. The HTTP session layer sets this
// after mapping the Bearer token to an account.
func ContextWithAccount(ctx context.Context, account string) context.Context {
	return context.WithValue(ctx, accountContextKey, account)
}

// AccountFromContext returns the account stored by ContextWithAccount.
func AccountFromContext(ctx context.Context) (string, bool) {
	account, ok := ctx.Value(accountContextKey).(string)
	return account, ok && account != ""
}

// GetAccountFromArgs extracts the account name from request arguments and
// context.
//
// Priority order:
//  1. Transport-resolved account from context (set per request)
//  2. Explicit "account" argument in request
//  3. "default"
func GetAccountFromArgs(ctx context.Context, args map[string]interface{}) string {
	if account, ok := AccountFromContext(ctx); ok {
		return account
	}

	if accountVal, ok := args["account"].(string); ok && accountVal != "" {
		return accountVal
	}
	return google.DefaultAccount
}
