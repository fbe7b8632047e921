package session

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{nil, KindInternal},
		{errors.New("db down"), KindInternal},
		{AuthenticationError{Op: "op", Reason: "r"}, KindAuthentication},
		{fmt.Errorf("wrapped: %w", ConflictError{Op: "op", Field: "email"}), KindConflict},
		{ValidationError{Op: "op", Violations: []string{"min_length"}}, KindValidation},
		{NotFoundError{Op: "op", Resource: "session"}, KindNotFound},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, KindOf(tc.err), "%v", tc.err)
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "session.Login: authentication failed: expired", AuthenticationError{Op: "session.Login", Reason: "expired"}.Error())
	assert.Equal(t, "session.Login: authentication failed", AuthenticationError{Op: "session.Login"}.Error())
	assert.Equal(t, "op: validation failed: min_length,digit_required",
		ValidationError{Op: "op", Violations: []string{"min_length", "digit_required"}}.Error())
	assert.Equal(t, "not_found", KindNotFound.String())
}
