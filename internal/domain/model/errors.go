package model

import "errors"

// Sentinel errors for model parsing and validation.
var (
	ErrUnknownValue  = errors.New("unknown value")
	ErrInvalidRating = errors.New("rating outside [0, 5]")
)
