package service

import "errors"

var (
	// ErrNotStarted is returned by ingestion calls before Start.
	ErrNotStarted = errors.New("service not started")
	// ErrInvalidSubmission marks a review submission that can never be persisted.
	ErrInvalidSubmission = errors.New("invalid review submission")
	// ErrDuplicate marks a submission that was already accepted.
	ErrDuplicate = errors.New("duplicate review submission")
	// ErrBackpressure is returned when the ingestion queue is full.
	ErrBackpressure = errors.New("ingestion queue full")
)
