package rbac

import (
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes surfaced to API clients. Clients branch on these, never on
// the human message, so they are part of the wire contract.
const (
	TextCodeUserNotFound              = "USER_IS_NOT_FOUND"
	TextCodeUserDoesNotExist          = "USER_DOES_NOT_EXIST"
	TextCodeUserAlreadyVerified       = "USER_IS_ALREADY_VERIFIED"
	TextCodeUserNotActive             = "USER_IS_NOT_ACTIVE"
	TextCodeEmailTaken                = "EMAIL_IS_ALREADY_ASSOCIATED_WITH_A_USER"
	TextCodeNewEmailTaken             = "NEW_EMAIL_IS_ALREADY_ASSOCIATED_WITH_A_USER"
	TextCodeEmailInvalid              = "EMAIL_IS_INVALID"
	TextCodeInvalidUserID             = "INVALID_USER_ID"
	TextCodePasswordIncorrect         = "PASSWORD_IS_INCORRECT"
	TextCodeOldPasswordIncorrect      = "OLD_PASSWORD_IS_INCORRECT"
	TextCodePasswordSameAsOld         = "NEW_PASSWORD_IS_SAME_AS_OLD_PASSWORD"
	TextCodePasswordReused            = "PASSWORD_IS_ALREADY_USED_BEFORE"
	TextCodePasswordPolicy            = "PASSWORD_DID_NOT_CONFORM_OUR_POLICY"
	TextCodeNoChangeEmailRequest      = "NO_CHANGE_EMAIL_REQUEST_IS_FOUND"
	TextCodeOTPNotValid               = "OTP_IS_NOT_VALID"
	TextCodeOTPExpired                = "OTP_IS_EXPIRED"
	TextCodeTooManyForgotPassword     = "TOO_MANY_FORGOT_PASSWORD_REQUESTS"
	TextCodeTooManyResendVerification = "TOO_MANY_RESEND_VERIFICATION_REQUESTS"
	TextCodeRefreshTokenInvalid       = "REFRESH_TOKEN_IS_INVALID"
	TextCodeCouldNotCreateAuthToken   = "COULD_NOT_CREATE_AUTH_TOKEN"
	TextCodeTokenTypeInvalid          = "TOKEN_TYPE_IS_INVALID"
	TextCodeRoleDoesNotExist          = "ROLE_DOES_NOT_EXIST"
	TextCodePermissionDoesNotExist    = "PERMISSION_DOES_NOT_EXIST"
	TextCodeRoleUserExists            = "ROLE_USER_ALREADY_EXISTS"
	TextCodeRolePermissionExists      = "ROLE_PERMISSION_ALREADY_EXISTS"
	TextCodeCouldNotRemoveRoleUser    = "COULD_NOT_REMOVE_ROLE_USER"
	TextCodePermissionDenied          = "PERMISSION_DENIED"
	TextCodeMissingToken              = "MISSING_TOKEN"
	TextCodeUnauthorized              = "UNAUTHORIZED"
	TextCodeMissingRequiredRoles      = "MISSING_REQUIRED_ROLES"
)

// ErrUserNotFound is returned when a lookup by id or email matches no row.
var ErrUserNotFound = goerrors.New("user is not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrUserDoesNotExist is the login flavor of a missing account; callers
// that must not leak account existence swap it for ErrPasswordIncorrect.
var ErrUserDoesNotExist = goerrors.New("user does not exist", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserDoesNotExist).
	WithCode(goerrors.CodeNotFound)

// ErrUserAlreadyVerified is returned when a verification flow targets an
// account that already left the unverified status.
var ErrUserAlreadyVerified = goerrors.New("user is already verified", goerrors.CategoryConflict).
	WithTextCode(TextCodeUserAlreadyVerified).
	WithCode(goerrors.CodeConflict)

// ErrUserNotActive guards operations reserved for active accounts.
var ErrUserNotActive = goerrors.New("user is not active", goerrors.CategoryAuth).
	WithTextCode(TextCodeUserNotActive).
	WithCode(goerrors.CodeUnauthorized)

// ErrEmailTaken is returned when a registration or email change collides
// with an existing account.
var ErrEmailTaken = goerrors.New("email is already associated with a user", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(goerrors.CodeConflict)

// ErrNewEmailTaken is the email-change flavor of ErrEmailTaken.
var ErrNewEmailTaken = goerrors.New("new email is already associated with a user", goerrors.CategoryConflict).
	WithTextCode(TextCodeNewEmailTaken).
	WithCode(goerrors.CodeConflict)

// ErrEmailInvalid is returned when an email fails format validation.
var ErrEmailInvalid = goerrors.New("email is invalid", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmailInvalid).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidUserID is returned when an id is not a valid UUID.
var ErrInvalidUserID = goerrors.New("invalid user id", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidUserID).
	WithCode(goerrors.CodeBadRequest)

// ErrPasswordIncorrect is returned on credential mismatch during login.
var ErrPasswordIncorrect = goerrors.New("password is incorrect", goerrors.CategoryAuth).
	WithTextCode(TextCodePasswordIncorrect).
	WithCode(goerrors.CodeUnauthorized)

// ErrOldPasswordIncorrect is returned on credential mismatch during a
// password change.
var ErrOldPasswordIncorrect = goerrors.New("old password is incorrect", goerrors.CategoryAuth).
	WithTextCode(TextCodeOldPasswordIncorrect).
	WithCode(goerrors.CodeUnauthorized)

// ErrPasswordSameAsOld rejects a change to the currently active password.
var ErrPasswordSameAsOld = goerrors.New("new password is same as old password", goerrors.CategoryValidation).
	WithTextCode(TextCodePasswordSameAsOld).
	WithCode(goerrors.CodeBadRequest)

// ErrPasswordReused rejects any password found in the retained history.
var ErrPasswordReused = goerrors.New("password is already used before", goerrors.CategoryValidation).
	WithTextCode(TextCodePasswordReused).
	WithCode(goerrors.CodeBadRequest)

// ErrPasswordPolicy is returned when a candidate password fails the
// complexity policy.
var ErrPasswordPolicy = goerrors.New("password did not conform our policy", goerrors.CategoryValidation).
	WithTextCode(TextCodePasswordPolicy).
	WithCode(goerrors.CodeBadRequest)

// ErrNoChangeEmailRequest is returned when finalizing an email change for
// a user that has no staged new email.
var ErrNoChangeEmailRequest = goerrors.New("no change email request is found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeNoChangeEmailRequest).
	WithCode(goerrors.CodeNotFound)

// ErrOTPNotValid is returned when no live code matches the presented one.
var ErrOTPNotValid = goerrors.New("otp is not valid", goerrors.CategoryAuth).
	WithTextCode(TextCodeOTPNotValid).
	WithCode(goerrors.CodeUnauthorized)

// ErrOTPExpired is returned when the matching code is past its TTL.
var ErrOTPExpired = goerrors.New("otp is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeOTPExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTooManyForgotPassword throttles forgot-password code issuance.
var ErrTooManyForgotPassword = goerrors.New("too many forgot password requests", goerrors.CategoryOperation).
	WithTextCode(TextCodeTooManyForgotPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrTooManyResendVerification throttles verification code re-issuance.
var ErrTooManyResendVerification = goerrors.New("too many resend verification requests", goerrors.CategoryOperation).
	WithTextCode(TextCodeTooManyResendVerification).
	WithCode(goerrors.CodeBadRequest)

// ErrRefreshTokenInvalid is returned when a refresh token fails signature
// checks or matches no stored session.
var ErrRefreshTokenInvalid = goerrors.New("refresh token is invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeRefreshTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrCouldNotCreateAuthToken wraps signing or persistence failures during
// session issuance.
var ErrCouldNotCreateAuthToken = goerrors.New("could not create auth token", goerrors.CategoryInternal).
	WithTextCode(TextCodeCouldNotCreateAuthToken).
	WithCode(goerrors.CodeInternal)

// ErrTokenTypeInvalid is returned when a token type is neither the access
// nor the refresh column.
var ErrTokenTypeInvalid = goerrors.New("token type is invalid", goerrors.CategoryValidation).
	WithTextCode(TextCodeTokenTypeInvalid).
	WithCode(goerrors.CodeBadRequest)

// ErrRoleDoesNotExist is returned when a role lookup by id or name misses.
var ErrRoleDoesNotExist = goerrors.New("role does not exist", goerrors.CategoryNotFound).
	WithTextCode(TextCodeRoleDoesNotExist).
	WithCode(goerrors.CodeNotFound)

// ErrPermissionDoesNotExist is returned when a permission lookup misses.
var ErrPermissionDoesNotExist = goerrors.New("permission does not exist", goerrors.CategoryNotFound).
	WithTextCode(TextCodePermissionDoesNotExist).
	WithCode(goerrors.CodeNotFound)

// ErrRoleUserExists is returned when assigning a role the user already has.
var ErrRoleUserExists = goerrors.New("role user already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeRoleUserExists).
	WithCode(goerrors.CodeConflict)

// ErrRolePermissionExists is returned when creating a duplicate grant edge.
var ErrRolePermissionExists = goerrors.New("role permission already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeRolePermissionExists).
	WithCode(goerrors.CodeConflict)

// ErrCouldNotRemoveRoleUser is returned when unassigning a role the user
// does not hold.
var ErrCouldNotRemoveRoleUser = goerrors.New("could not remove role user", goerrors.CategoryNotFound).
	WithTextCode(TextCodeCouldNotRemoveRoleUser).
	WithCode(goerrors.CodeNotFound)

// ErrPermissionDenied is the authorization gate's 403.
var ErrPermissionDenied = goerrors.New("permission denied", goerrors.CategoryAuthz).
	WithTextCode(TextCodePermissionDenied).
	WithCode(goerrors.CodeForbidden)

// ErrMissingToken is returned when a protected route sees no bearer token.
var ErrMissingToken = goerrors.New("missing token", goerrors.CategoryAuth).
	WithTextCode(TextCodeMissingToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnauthorized is returned when a bearer token fails verification.
var ErrUnauthorized = goerrors.New("unauthorized", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(goerrors.CodeUnauthorized)

// ErrMissingRequiredRoles is returned when the token's roles do not
// intersect the route's required roles.
var ErrMissingRequiredRoles = goerrors.New("missing required roles", goerrors.CategoryAuth).
	WithTextCode(TextCodeMissingRequiredRoles).
	WithCode(goerrors.CodeUnauthorized)

// UserStatusError maps a non-active account status to its login rejection,
// e.g. USER_IS_INACTIVE for an inactive user.
func UserStatusError(status UserStatus) *goerrors.Error {
	code := fmt.Sprintf("USER_IS_%s", upperSnake(status))
	return goerrors.New(fmt.Sprintf("user is %s", status), goerrors.CategoryAuth).
		WithTextCode(code).
		WithCode(goerrors.CodeUnauthorized)
}

func upperSnake(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		if r == ' ' || r == '-' {
			r = '_'
		}
		out = append(out, r)
	}
	return string(out)
}

// IsTextCode reports whether err carries the given client-facing code.
func IsTextCode(err error, code string) bool {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.TextCode == code
	}
	return false
}
