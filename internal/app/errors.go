package service

import "errors"

var (
	// ErrValidation marks requests missing required fields. Nothing is mutated.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned for unknown users and regions.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an action_id was already applied.
	ErrDuplicate = errors.New("duplicate action")
	// ErrNotStarted is returned by operations called before Start.
	ErrNotStarted = errors.New("service not started")
)
