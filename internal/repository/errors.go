// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// allocation engine and the handlers to distinguish between different
// failure scenarios without inspecting driver errors.
package repository

import "errors"

// ErrTrainNotFound is returned when a train row does not exist.
var ErrTrainNotFound = errors.New("train not found")

// ErrReservationNotFound is returned when no booking carries the PNR.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrDuplicateTrainNumber is returned when a train is created with a
// train_number that is already taken.
var ErrDuplicateTrainNumber = errors.New("duplicate train number")

// ErrStaleVersion is returned when a train row changed between the
// locked read and the write-back. The engine serialises writers per
// train, so seeing this means two processes share the database without
// row locks (SQLite) or the row was edited out of band.
var ErrStaleVersion = errors.New("stale train version")
