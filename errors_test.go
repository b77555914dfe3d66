package rbac_test

import (
	"errors"
	"fmt"
	"testing"

	rbac "github.com/goliatone/go-rbac"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
)

func TestIsTextCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     string
		expected bool
	}{
		{
			name:     "matching raw catalog error",
			err:      rbac.ErrUserDoesNotExist,
			code:     rbac.TextCodeUserDoesNotExist,
			expected: true,
		},
		{
			name:     "matching wrapped error",
			err:      fmt.Errorf("handler: %w", rbac.ErrEmailTaken),
			code:     rbac.TextCodeEmailTaken,
			expected: true,
		},
		{
			name:     "different catalog error",
			err:      rbac.ErrPasswordIncorrect,
			code:     rbac.TextCodeEmailTaken,
			expected: false,
		},
		{
			name:     "plain error",
			err:      errors.New("boom"),
			code:     rbac.TextCodeEmailTaken,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			code:     rbac.TextCodeEmailTaken,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, rbac.IsTextCode(tt.err, tt.code))
		})
	}
}

func TestUserStatusError(t *testing.T) {
	tests := []struct {
		status   rbac.UserStatus
		textCode string
	}{
		{status: rbac.UserStatusUnverified, textCode: "USER_IS_UNVERIFIED"},
		{status: rbac.UserStatusInactive, textCode: "USER_IS_INACTIVE"},
		{status: rbac.UserStatusInvited, textCode: "USER_IS_INVITED"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			err := rbac.UserStatusError(tt.status)
			assert.Equal(t, tt.textCode, err.TextCode)
			assert.True(t, rbac.IsTextCode(err, tt.textCode))
		})
	}
}

func TestIsTokenExpiredError(t *testing.T) {
	assert.True(t, rbac.IsTokenExpiredError(rbac.ErrTokenExpired))
	assert.True(t, rbac.IsTokenExpiredError(fmt.Errorf("validate: %w", rbac.ErrTokenExpired)))
	assert.False(t, rbac.IsTokenExpiredError(rbac.ErrTokenMalformed))
	assert.False(t, rbac.IsTokenExpiredError(errors.New("boom")))
	assert.False(t, rbac.IsTokenExpiredError(nil))
}

func TestIsMalformedError(t *testing.T) {
	assert.True(t, rbac.IsMalformedError(rbac.ErrTokenMalformed))
	assert.False(t, rbac.IsMalformedError(rbac.ErrTokenExpired))
	assert.False(t, rbac.IsMalformedError(nil))
}

func TestCatalogErrorsCarryCodes(t *testing.T) {
	cases := map[string]struct {
		err  *goerrors.Error
		code string
	}{
		"user not found":   {err: rbac.ErrUserNotFound, code: rbac.TextCodeUserNotFound},
		"email taken":      {err: rbac.ErrEmailTaken, code: rbac.TextCodeEmailTaken},
		"otp not valid":    {err: rbac.ErrOTPNotValid, code: rbac.TextCodeOTPNotValid},
		"otp expired":      {err: rbac.ErrOTPExpired, code: rbac.TextCodeOTPExpired},
		"refresh invalid":  {err: rbac.ErrRefreshTokenInvalid, code: rbac.TextCodeRefreshTokenInvalid},
		"denied":           {err: rbac.ErrPermissionDenied, code: rbac.TextCodePermissionDenied},
		"missing token":    {err: rbac.ErrMissingToken, code: rbac.TextCodeMissingToken},
		"missing roles":    {err: rbac.ErrMissingRequiredRoles, code: rbac.TextCodeMissingRequiredRoles},
		"role missing":     {err: rbac.ErrRoleDoesNotExist, code: rbac.TextCodeRoleDoesNotExist},
		"password policy":  {err: rbac.ErrPasswordPolicy, code: rbac.TextCodePasswordPolicy},
		"password reused":  {err: rbac.ErrPasswordReused, code: rbac.TextCodePasswordReused},
		"not active":       {err: rbac.ErrUserNotActive, code: rbac.TextCodeUserNotActive},
		"already verified": {err: rbac.ErrUserAlreadyVerified, code: rbac.TextCodeUserAlreadyVerified},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.code, tc.err.TextCode)
			assert.NotZero(t, tc.err.Code, "catalog errors should map to an HTTP status")
		})
	}
}
