package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorAccessors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    string
		message string
		op      string
	}{
		{name: "nil", err: nil},
		{name: "plain error is internal", err: errors.New("boom"), code: EINTERNAL, message: internalMessage},
		{name: "invalid", err: Invalid("team.create", "Name is required."), code: EINVALID, message: "Name is required.", op: "team.create"},
		{name: "wrapped", err: fmt.Errorf("outer: %w", Conflict("team.create", "Taken.")), code: ECONFLICT, message: "Taken.", op: "team.create"},
		{name: "internal hides message", err: Internal(errors.New("db down"), "user.get", "load user"), code: EINTERNAL, message: internalMessage, op: "user.get"},
		{name: "not configured", err: NotConfigured("agent.realtime", "OpenAI"), code: ENOTIMPL, message: "OpenAI is not configured", op: "agent.realtime"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, ErrorCode(tt.err))
			assert.Equal(t, tt.message, ErrorMessage(tt.err))
			assert.Equal(t, tt.op, ErrorOp(tt.err))
		})
	}
}

func TestError_UnwrapAndIsCode(t *testing.T) {
	cause := errors.New("limit hit")
	err := QuotaExceeded(cause, "quota.consume", "Daily limit reached.")

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsCode(err, EFORBIDDEN))
	assert.False(t, IsCode(err, ENOTFOUND))
	assert.False(t, IsCode(nil, EFORBIDDEN))
	assert.Equal(t, "quota.consume: Daily limit reached.", err.Error())
}

func TestValidationError_Add(t *testing.T) {
	ve := NewValidationError("user.register", "email", "Enter a valid email address.")
	ve.Add("password", "This field is required.")

	assert.Len(t, ve.Fields, 2)
	assert.Equal(t, "user.register: validation failed on 2 field(s)", ve.Error())
}
