package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound          = errors.New("entity not found")
	ErrAlreadyExists     = errors.New("entity already exists")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInvalidTransition = errors.New("invalid job status transition")
	ErrJobNotProcessing  = errors.New("job is not processing")
	ErrAlreadyFinalizing = errors.New("job is already being finalized")
	ErrQueueFull         = errors.New("worker queue full")
	ErrMissingJobID      = errors.New("collector invoked without job id")

	// Synthesis errors
	ErrInsufficientData = errors.New("no source produced usable data")
	ErrSynthesisFailed  = errors.New("persona synthesis failed")

	// Persistence errors
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrCacheUnavailable   = errors.New("result cache unavailable")
)
