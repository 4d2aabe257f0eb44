// Package middleware contains HTTP middleware for the tenantly API.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler
// and are composed with Stack.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/tenantly/internal/auth"
	"github.com/DukeRupert/tenantly/internal/domain"
	"github.com/DukeRupert/tenantly/internal/handler"
	"github.com/DukeRupert/tenantly/internal/service"
)

// AuthMiddleware authenticates API tokens and gates routes on the user's
// staff flag and subscription.
type AuthMiddleware struct {
	users   service.UserService
	billing service.BillingService
	logger  *slog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
func NewAuthMiddleware(users service.UserService, billing service.BillingService, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		users:   users,
		billing: billing,
		logger:  logger,
	}
}

// WithUser loads the user for the request's API token. Requests without an
// Authorization header continue anonymously. A header carrying an unknown
// or malformed token is rejected with 401.
func (m *AuthMiddleware) WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, present := auth.TokenFromRequest(r)
		if !present {
			next.ServeHTTP(w, r)
			return
		}
		if raw == "" {
			handler.ErrorResponse(w, r, m.logger, domain.Unauthorized("middleware.with_user", "Invalid token header."))
			return
		}

		user, err := m.users.Authenticate(r.Context(), raw)
		if err != nil {
			handler.ErrorResponse(w, r, m.logger, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.SetUser(r.Context(), user)))
	})
}

// RequireUser rejects anonymous requests with 401. Use after WithUser.
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetUser(r.Context()) == nil {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireStaff allows only staff users. Use after RequireUser.
func (m *AuthMiddleware) RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := auth.GetUser(r.Context())
		if user == nil {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}
		if !user.IsStaff {
			m.logger.Warn("non-staff access attempt", "user_id", user.ID, "path", r.URL.Path)
			handler.ForbiddenResponse(w, r, m.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireActiveSubscription returns 403 unless the user has an active
// subscription, personally or through a team they own. Use after
// RequireUser.
func (m *AuthMiddleware) RequireActiveSubscription(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := auth.GetUser(r.Context())
		if user == nil {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}
		if err := m.billing.RequireActiveSubscription(r.Context(), user.ID); err != nil {
			handler.ErrorResponse(w, r, m.logger, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Stack composes middleware. The first argument is the outermost.
//
//	stack := Stack(authMw.WithUser, authMw.RequireUser)
//	mux.Handle("GET /api/users/me/", stack(meHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

var (
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).WithUser
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).RequireUser
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).RequireStaff
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).RequireActiveSubscription
)
