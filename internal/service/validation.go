package service

import (
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"

	"user-api/internal/domain"
)

// bcrypt ignores input past 72 bytes and newer versions reject it.
const maxPasswordLength = 72

var (
	loginPattern    = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
	passwordPattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
	namePattern     = regexp.MustCompile(`^[a-zA-Zа-яА-ЯёЁ]+$`)
)

func validateCreate(in domain.CreateUserInput) error {
	return asValidationError(validation.ValidateStruct(&in,
		validation.Field(&in.Login, validation.Required, validation.Match(loginPattern)),
		validation.Field(&in.Password, passwordRules()...),
		validation.Field(&in.Name, validation.Required, validation.Match(namePattern)),
		validation.Field(&in.Gender, validation.Min(0), validation.Max(2)),
	))
}

func validateUpdate(in domain.UpdateProfileInput) error {
	return asValidationError(validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.NilOrNotEmpty, validation.Match(namePattern)),
		validation.Field(&in.Gender, validation.Min(0), validation.Max(2)),
	))
}

func validateLogin(login string) error {
	return asValidationError(validation.Validate(login,
		validation.Required.Error("new login is required"),
		validation.Match(loginPattern).Error("login must contain only latin letters and digits"),
	))
}

func validatePassword(password string) error {
	return asValidationError(validation.Validate(password, passwordRules()...))
}

func passwordRules() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error("password is required"),
		validation.Length(1, maxPasswordLength).Error("password must be at most 72 characters long"),
		validation.Match(passwordPattern).Error("password must contain only latin letters and digits"),
	}
}

func asValidationError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", domain.ErrValidation, err)
}
