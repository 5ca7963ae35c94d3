package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrUnknownField is returned when a field name outside the session or
	// task schema reaches the adapter boundary
	ErrUnknownField = errors.New("unknown field")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
)
