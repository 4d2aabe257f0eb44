// Package auth holds request context helpers shared by middleware and
// handlers without an import cycle.
package auth

import (
	"context"
	"net/http"

	"github.com/DukeRupert/tenantly/internal/domain"
)

type contextKey string

const (
	userContextKey contextKey = "user"
	siteContextKey contextKey = "site"
)

// GetUser retrieves the authenticated user from the context.
// Returns nil if no user is authenticated.
func GetUser(ctx context.Context) *domain.User {
	user, ok := ctx.Value(userContextKey).(*domain.User)
	if !ok {
		return nil
	}
	return user
}

// GetUserFromRequest is GetUser on r's context.
func GetUserFromRequest(r *http.Request) *domain.User {
	return GetUser(r.Context())
}

// SetUser stores a user in the context.
func SetUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// GetSite retrieves the site resolved from the request host.
// Returns nil when the host serves no site.
func GetSite(ctx context.Context) *domain.ResolvedSite {
	site, ok := ctx.Value(siteContextKey).(*domain.ResolvedSite)
	if !ok {
		return nil
	}
	return site
}

// SetSite stores the resolved site in the context.
func SetSite(ctx context.Context, site *domain.ResolvedSite) context.Context {
	return context.WithValue(ctx, siteContextKey, site)
}
