package domain

import (
	"errors"
	"fmt"
)

// Failure kinds returned by the store and the user service. Details are
// attached with fmt.Errorf("%w: ...") and callers classify with errors.Is.
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("user not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrAuthentication   = errors.New("invalid credentials")
	ErrInvalidState     = errors.New("invalid account state")

	// ErrLoginTaken is the uniqueness conflict raised by stores.
	ErrLoginTaken = fmt.Errorf("%w: login already exists", ErrValidation)
)
