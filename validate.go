package rbac

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
)

// ValidateEmail checks format only; uniqueness is the repository's job.
func ValidateEmail(email string) error {
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return ErrEmailInvalid.Clone().WithMetadata(map[string]any{
			"email": email,
		})
	}
	return nil
}

// ValidatePhone parses the number against the given default region,
// e.g. "US". Empty phone is allowed; phone is optional on the account.
func ValidatePhone(phone, region string) error {
	if phone == "" {
		return nil
	}
	if region == "" {
		region = "US"
	}
	num, err := phonenumbers.Parse(phone, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		clone := ErrEmailInvalid.Clone()
		clone.Message = "phone number is invalid"
		return clone.WithTextCode("PHONE_NUMBER_IS_INVALID").WithMetadata(map[string]any{
			"phone": phone,
		})
	}
	return nil
}

// ParseUserID parses an id string, mapping failures to the client-facing
// invalid-id rejection.
func ParseUserID(id string) (uuid.UUID, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, ErrInvalidUserID.Clone().WithMetadata(map[string]any{
			"id": id,
		})
	}
	return uid, nil
}

// ValidateStringEquals builds an ozzo rule asserting equality with want,
// used for password confirmation fields.
func ValidateStringEquals(want string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != want {
			return validation.NewError("validation_match", "values do not match")
		}
		return nil
	}
}
