package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnknownDriver = errors.New("unknown store driver")
	ErrUnavailable   = errors.New("store unavailable")
)
