package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

// OwnerKey is the context key for the requesting owner id.
const OwnerKey contextKey = "owner_id"

// DefaultOwner is used when a request carries no owner.
const DefaultOwner = "anonymous"

// OwnerExtractor reads the owner from the X-Owner-Id header, then the
// owner query parameter, and falls back to DefaultOwner.
func OwnerExtractor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := strings.TrimSpace(r.Header.Get("X-Owner-Id"))
		if owner == "" {
			owner = strings.TrimSpace(r.URL.Query().Get("owner"))
		}
		if owner == "" {
			owner = DefaultOwner
		}
		next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
	})
}

// WithOwner stores the owner id in ctx.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, OwnerKey, owner)
}

// GetOwner retrieves the owner id from the request context.
func GetOwner(ctx context.Context) string {
	if v, ok := ctx.Value(OwnerKey).(string); ok && v != "" {
		return v
	}
	return DefaultOwner
}
