package types

import (
	"errors"
	"fmt"
)

// Reservation outcomes. Handlers map them to HTTP statuses with errors.Is.
var (
	// ErrNotReserved means the operation needed an existing reservation.
	ErrNotReserved = errors.New("port not reserved")
	// ErrAlreadyReserved means the operation needed the port to be free.
	ErrAlreadyReserved = errors.New("port already reserved")
	// ErrRangeExhausted means no free port is left at or above the floor.
	ErrRangeExhausted = errors.New("port range exhausted")
	// ErrMalformedInput means a request value could not be used.
	ErrMalformedInput = errors.New("malformed input")
	// ErrStorage means the underlying database failed.
	ErrStorage = errors.New("storage failure")
)

// StorageError wraps a database error raised while running Op.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStorage, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is reports ErrStorage so callers need not know the wrapped driver error.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}
