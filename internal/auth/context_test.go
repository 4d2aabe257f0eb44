package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DukeRupert/tenantly/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestUserContext(t *testing.T) {
	assert.Nil(t, GetUser(context.Background()))

	u := &domain.User{ID: uuid.New(), Email: "a@example.com"}
	ctx := SetUser(context.Background(), u)
	assert.Same(t, u, GetUser(ctx))

	r := httptest.NewRequest("GET", "/", nil).WithContext(ctx)
	assert.Same(t, u, GetUserFromRequest(r))
}

func TestSiteContext(t *testing.T) {
	assert.Nil(t, GetSite(context.Background()))

	s := &domain.ResolvedSite{}
	s.Site.Domain = "example.com"
	ctx := SetSite(context.Background(), s)
	assert.Same(t, s, GetSite(ctx))
}

// =============================================================================
// TokenFromRequest
// =============================================================================

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		header      string
		wantToken   string
		wantPresent bool
	}{
		{header: "", wantToken: "", wantPresent: false},
		{header: "Token abc123", wantToken: "abc123", wantPresent: true},
		{header: "Bearer abc123", wantToken: "abc123", wantPresent: true},
		{header: "bearer abc123", wantToken: "abc123", wantPresent: true},
		{header: "Token", wantToken: "", wantPresent: true},
		{header: "Token a b", wantToken: "", wantPresent: true},
		{header: "Basic dXNlcjpwYXNz", wantToken: "", wantPresent: false},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			token, present := TokenFromRequest(req)
			assert.Equal(t, tt.wantToken, token)
			assert.Equal(t, tt.wantPresent, present)
		})
	}
}
