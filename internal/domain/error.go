package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound             = errors.New("entity not found")
	ErrAlreadyExists        = errors.New("entity already exists")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrQuotaExceeded        = errors.New("generation quota exceeded")
	ErrNoVariants           = errors.New("job has no variant specs")
	ErrReferenceUnavailable = errors.New("reference input unavailable")
	ErrRegenerateInFlight   = errors.New("regeneration already in flight for subject")
	ErrJobQueueFull         = errors.New("generation queue is full")
	ErrReadDatabaseRow      = errors.New("could not read database row")
	ErrInvalidExecContext   = errors.New("invalid executor context")
)
