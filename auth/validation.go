package auth

import (
	"fmt"
	"net/url"
	"regexp"

	ikerrors "github.com/identitykit/identitykit-go/internal/errors"
)

const (
	maxUIDLength      = 128
	minPasswordLength = 6
)

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+$`)
	phonePattern = regexp.MustCompile(`^\+[0-9]{6,14}$`)
)

// Validator checks user-record properties before they reach the wire.
type Validator struct{}

// NewValidator creates a Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateUID checks a user identifier.
func (v *Validator) ValidateUID(uid string) error {
	if uid == "" {
		return &ikerrors.InvalidArgumentError{Argument: "uid", Message: "must be a non-empty string"}
	}
	if len(uid) > maxUIDLength {
		return &ikerrors.InvalidArgumentError{Argument: "uid", Message: fmt.Sprintf("must not exceed %d characters", maxUIDLength)}
	}
	return nil
}

// ValidateEmail checks an email address.
func (v *Validator) ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return &ikerrors.InvalidArgumentError{Argument: "email", Message: "must be a valid email address"}
	}
	return nil
}

// ValidatePassword checks a raw password. Hashing happens on the backend;
// only the minimum-length policy is enforced locally.
func (v *Validator) ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return &ikerrors.InvalidArgumentError{Argument: "password", Message: fmt.Sprintf("must be at least %d characters long", minPasswordLength)}
	}
	return nil
}

// ValidatePhoneNumber checks an E.164 phone number.
func (v *Validator) ValidatePhoneNumber(phone string) error {
	if !phonePattern.MatchString(phone) {
		return &ikerrors.InvalidArgumentError{Argument: "phoneNumber", Message: "must be an E.164 phone number such as +15551234567"}
	}
	return nil
}

// ValidatePhotoURL checks a profile photo URL.
func (v *Validator) ValidatePhotoURL(photoURL string) error {
	parsed, err := url.Parse(photoURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return &ikerrors.InvalidArgumentError{Argument: "photoUrl", Message: "must be an http or https URL"}
	}
	return nil
}

// validateProperties checks the wire property map produced by the
// UserToCreate/UserToUpdate builders.
func (v *Validator) validateProperties(props map[string]any) error {
	if uid, ok := props["localId"].(string); ok {
		if err := v.ValidateUID(uid); err != nil {
			return err
		}
	}
	if email, ok := props["email"].(string); ok {
		if err := v.ValidateEmail(email); err != nil {
			return err
		}
	}
	if password, ok := props["password"].(string); ok {
		if err := v.ValidatePassword(password); err != nil {
			return err
		}
	}
	if phone, ok := props["phoneNumber"].(string); ok {
		if err := v.ValidatePhoneNumber(phone); err != nil {
			return err
		}
	}
	if photoURL, ok := props["photoUrl"].(string); ok {
		if err := v.ValidatePhotoURL(photoURL); err != nil {
			return err
		}
	}
	return nil
}
