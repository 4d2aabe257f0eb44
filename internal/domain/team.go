package domain

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Team is a group owned by one user. A team may own an Account.
type Team struct {
	ID        uuid.UUID
	Name      string
	Slug      string
	OwnerID   *uuid.UUID
	CreatedAt time.Time
}

// Slugify lowercases name, turns spaces into hyphens and drops every
// character outside [a-z0-9-]. Accented letters are folded to their base
// letter first, so "Café Team" becomes "cafe-team".
func Slugify(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	folded = strings.ReplaceAll(strings.ToLower(folded), " ", "-")

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// AccessUsername returns the service user name reserved for a team slug.
func AccessUsername(slug string) string {
	return "team_" + strings.ReplaceAll(slug, "-", "_")
}
