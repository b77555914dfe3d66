package rbac

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Password policy: at least 8 characters with an upper case letter, a
// lower case letter, a digit, and a symbol.
const MinPasswordLength = 8

var passwordRules = []validation.Rule{
	validation.Required,
	validation.Length(MinPasswordLength, 0),
	validation.Match(regexp.MustCompile(`\p{Lu}`)).Error("must contain an upper case letter"),
	validation.Match(regexp.MustCompile(`\p{Ll}`)).Error("must contain a lower case letter"),
	validation.Match(regexp.MustCompile(`\p{Nd}`)).Error("must contain a digit"),
	validation.Match(regexp.MustCompile(`[\p{P}\p{S}]`)).Error("must contain a symbol"),
}

// CheckPasswordPolicy validates a candidate password against the policy.
func CheckPasswordPolicy(password string) error {
	if err := validation.Validate(password, passwordRules...); err != nil {
		return ErrPasswordPolicy.Clone().WithMetadata(map[string]any{
			"reason": err.Error(),
		})
	}
	return nil
}

// ValidateNewPassword runs the full gauntlet for a password change:
// policy conformance, not the active password, not in the history.
func ValidateNewPassword(password, currentHash string, oldHashes []string) error {
	if err := CheckPasswordPolicy(password); err != nil {
		return err
	}
	if currentHash != "" && ComparePasswordAndHash(password, currentHash) == nil {
		return ErrPasswordSameAsOld
	}
	if MatchesAnyHash(password, oldHashes) {
		return ErrPasswordReused
	}
	return nil
}
