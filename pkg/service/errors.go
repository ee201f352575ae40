package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// NotFoundError is returned when an event id doesn't exist.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Event not found with id: %d", e.ID)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// ValidationError carries one message per rejected field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	msgs := make([]string, 0, len(names))
	for _, name := range names {
		msgs = append(msgs, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return "validation failed: " + strings.Join(msgs, ", ")
}

func IsValidationError(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}
