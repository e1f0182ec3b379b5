package service

import (
	"errors"
	"fmt"
)

// Error classes. Handlers map these to HTTP status codes with errors.Is.
var (
	ErrValidation     = errors.New("validation failed")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrAlreadyDeleted = errors.New("post already deleted")
)

var (
	ErrPostNotFound     = fmt.Errorf("post %w", ErrNotFound)
	ErrVersionNotFound  = fmt.Errorf("version %w", ErrNotFound)
	ErrCategoryNotFound = fmt.Errorf("category %w", ErrNotFound)

	ErrTitleRequired        = fmt.Errorf("%w: title is required", ErrValidation)
	ErrTitleTooShort        = fmt.Errorf("%w: title must be at least %d characters", ErrValidation, minTitleLength)
	ErrContentRequired      = fmt.Errorf("%w: content is required", ErrValidation)
	ErrExcerptTooLong       = fmt.Errorf("%w: excerpt must be at most %d characters", ErrValidation, maxExcerptLength)
	ErrMalformedReference   = fmt.Errorf("%w: malformed reference", ErrValidation)
	ErrCategoryNameRequired = fmt.Errorf("%w: category name is required", ErrValidation)
	ErrNameRequired         = fmt.Errorf("%w: name is required", ErrValidation)
	ErrEmailRequired        = fmt.Errorf("%w: email is required", ErrValidation)
	ErrPasswordTooShort     = fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)

	ErrCategoryExists = fmt.Errorf("%w: category already exists", ErrConflict)
	ErrEmailTaken     = fmt.Errorf("%w: user already exists, please login", ErrConflict)
	ErrWriteConflict  = fmt.Errorf("%w: post was modified concurrently, retry the request", ErrConflict)

	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
)

// CategoryRefError reports the first bad category id of a request.
type CategoryRefError struct {
	ID  string
	Err error
}

func (e *CategoryRefError) Error() string {
	return fmt.Sprintf("category %q: %v", e.ID, e.Err)
}

func (e *CategoryRefError) Unwrap() error {
	return e.Err
}
