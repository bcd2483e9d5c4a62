package main

import (
	"context"
	"net/http"
)

type ctxKey int

const claimsKey ctxKey = iota

func contextWithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromContext returns the identity verified by RequireToken.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsKey).(Claims)
	return c, ok && c.ID != ""
}

// verifiedUserID is the only way handlers obtain the id of the record owner.
// Request bodies are never consulted.
func verifiedUserID(r *http.Request) (string, error) {
	c, ok := ClaimsFromContext(r.Context())
	if !ok {
		return "", ErrUnauthenticated
	}
	return c.ID, nil
}
