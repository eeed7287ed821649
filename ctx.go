package accounts

import (
	"context"

	"github.com/goliatone/go-router"
)

// DefaultContextKey is the request locals key session claims are stored under.
const DefaultContextKey = "user"

var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithClaimsContext sets the AuthClaims in the given context
func WithClaimsContext(r context.Context, claims AuthClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the AuthClaims from the standard context
func GetClaims(ctx context.Context) (AuthClaims, bool) {
	if ctx == nil {
		return nil, false
	}
	raw, ok := ctx.Value(claimsCtxKey).(AuthClaims)
	return raw, ok && raw != nil
}

// GetRouterClaims extracts the AuthClaims stored under key in the request
// locals, falling back to the request's standard context.
func GetRouterClaims(ctx router.Context, key string) (AuthClaims, bool) {
	if key == "" {
		key = DefaultContextKey
	}
	if claims, ok := ctx.Locals(key).(AuthClaims); ok && claims != nil {
		return claims, true
	}
	return GetClaims(ctx.Context())
}
