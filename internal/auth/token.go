package auth

import (
	"net/http"
	"strings"
)

// Authorization header keywords accepted for API tokens.
const (
	TokenKeyword  = "Token"
	BearerKeyword = "Bearer"
)

// TokenFromRequest returns the raw token from an "Authorization: Token <t>"
// or "Authorization: Bearer <t>" header. present is false when the request
// carries no token credentials at all; a token header that is malformed
// returns ("", true).
func TokenFromRequest(r *http.Request) (token string, present bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}

	keyword, rest, found := strings.Cut(header, " ")
	if !strings.EqualFold(keyword, TokenKeyword) && !strings.EqualFold(keyword, BearerKeyword) {
		return "", false
	}
	if !found {
		return "", true
	}

	rest = strings.TrimSpace(rest)
	if rest == "" || strings.ContainsRune(rest, ' ') {
		return "", true
	}
	return rest, true
}
