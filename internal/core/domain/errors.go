package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMissingToken       = errors.New("no token provided")
	ErrInvalidToken       = errors.New("failed to authenticate token")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("record not found")
	ErrDuplicate          = errors.New("duplicate record")
	ErrInvalidInput       = errors.New("invalid input")
	ErrReadFailed         = errors.New("read failed")
	ErrUnknownEntity      = errors.New("unknown entity")
)

// ValidationError describes why a single field of a request was rejected.
// It matches ErrInvalidInput under errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}
