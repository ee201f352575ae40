package storage

import "errors"

type storageError string

// ErrNotFound is returned when the requested record doesn't exist.
const ErrNotFound = storageError("not found")

func (e storageError) Error() string {
	return string(e)
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
