package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// Password Validation Tests
// =============================================================================

func TestValidatePassword(t *testing.T) {
	testCases := []struct {
		name     string
		password string
		valid    bool
	}{
		{"too short - 7 chars", "Abcdef1", false},
		{"minimum - 8 chars", "Abcdef12", true},
		{"letters only is fine", "correcthorse", true},
		{"bcrypt limit - 72 chars", strings.Repeat("Aa1", 24), true},
		{"over bcrypt limit", strings.Repeat("Aa1", 25), false},
		{"entirely numeric", "83920174", false},
		{"common password", "password1", false},
		{"common password any case", "PassWord1", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validatePassword(tc.password)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

// =============================================================================
// Email Validation Tests
// =============================================================================

func TestValidateEmail(t *testing.T) {
	testCases := []struct {
		name  string
		email string
		valid bool
	}{
		{"simple", "ada@example.com", true},
		{"subdomain", "ada@mail.example.co.uk", true},
		{"empty", "", false},
		{"no at", "ada.example.com", false},
		{"two ats", "ada@@example.com", false},
		{"no domain dot", "ada@localhost", false},
		{"double dot", "ada@example..com", false},
		{"trailing at", "ada@", false},
		{"too long", strings.Repeat("a", 250) + "@x.io", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateEmail(tc.email)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
