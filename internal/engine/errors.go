package engine

import (
	"errors"
	"fmt"
)

// Errors returned by the engine.  Every call returns either a result or
// exactly one of these (possibly wrapped); a failed call leaves durable
// state and the mirror unchanged.
var (
	ErrResourceNotFound    = errors.New("train not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrAlreadyCancelled    = errors.New("reservation already cancelled")
	ErrInvalidCapacity     = errors.New("invalid capacity")
	ErrStorageFailure      = errors.New("storage failure")
	ErrConflict            = errors.New("conflict")
	ErrInvalidRequest      = errors.New("invalid request")
)

// storageErr tags a driver error as ErrStorageFailure while keeping the
// cause reachable through errors.Is / errors.As.
func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageFailure, op, err)
}
