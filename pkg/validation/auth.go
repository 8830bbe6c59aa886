package validation

import (
	"errors"
	"fmt"
	"regexp"
)

const (
	minPasswordBytes = 8
	maxPasswordBytes = 72
	maxEmailLength   = 255
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// AuthRequestValidator validates authentication-related requests
type AuthRequestValidator struct{}

// NewAuthRequestValidator creates a new AuthRequestValidator
func NewAuthRequestValidator() *AuthRequestValidator {
	return &AuthRequestValidator{}
}

// ValidatePassword validates a password. bcrypt only reads the first 72 bytes,
// so longer passwords are rejected rather than silently truncated.
func (v *AuthRequestValidator) ValidatePassword(password string) error {
	if password == "" {
		return errors.New("password cannot be empty")
	}

	if len(password) < minPasswordBytes {
		return fmt.Errorf("password must be at least %d characters long, got %d", minPasswordBytes, len(password))
	}

	if len(password) > maxPasswordBytes {
		return fmt.Errorf("password must be at most %d bytes long, got %d", maxPasswordBytes, len(password))
	}

	return nil
}

// ValidateEmail validates an email address (basic validation)
func (v *AuthRequestValidator) ValidateEmail(email string) error {
	if email == "" {
		return errors.New("email cannot be empty")
	}

	if len(email) > maxEmailLength {
		return fmt.Errorf("email must be at most %d characters long, got %d", maxEmailLength, len(email))
	}

	if !emailRegex.MatchString(email) {
		return errors.New("invalid email format")
	}

	return nil
}

// ValidateLoginRequest checks presence and the bcrypt length ceiling only.
func (v *AuthRequestValidator) ValidateLoginRequest(email, password string) error {
	if email == "" {
		return errors.New("email cannot be empty")
	}

	if password == "" {
		return errors.New("password cannot be empty")
	}

	if len(password) > maxPasswordBytes {
		return fmt.Errorf("password must be at most %d bytes long, got %d", maxPasswordBytes, len(password))
	}

	return nil
}

// ValidateRegisterRequest reports every problem with a signup at once
func (v *AuthRequestValidator) ValidateRegisterRequest(email, password string) error {
	return errors.Join(
		v.ValidateEmail(email),
		v.ValidatePassword(password),
	)
}
