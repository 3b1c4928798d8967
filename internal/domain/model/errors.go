package model

import "errors"

var (
	// ErrMissingIdentifier is returned before any network call when an
	// update cannot resolve a record id from its arguments.
	ErrMissingIdentifier = errors.New("missing record identifier")

	// ErrInvalidArgumentCombination is returned when loose query arguments
	// cannot be classified into a known option category.
	ErrInvalidArgumentCombination = errors.New("invalid argument combination")

	ErrUnauthorized       = errors.New("session expired or unauthorized")
	ErrForbidden          = errors.New("permission denied")
	ErrRateLimited        = errors.New("rate limited by the portal")
	ErrServiceUnavailable = errors.New("portal unavailable")
)

type ValidationError struct {
	Field   string
	Message string
}

type ValidationErrors struct {
	Errors []ValidationError
}

func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return "validation failed"
	}

	return v.Errors[0].Message
}

func (v *ValidationErrors) Add(field, message string) {
	v.Errors = append(v.Errors, ValidationError{Field: field, Message: message})
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}
