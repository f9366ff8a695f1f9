package storage

import (
	"errors"
	"fmt"
)

// Common storage errors.
var (
	// ErrItemNotFound is returned when no checklist item has the requested name.
	ErrItemNotFound = errors.New("checklist item not found")

	// ErrIndexOutOfRange is returned when a position does not address a checklist item.
	ErrIndexOutOfRange = errors.New("checklist index out of range")

	// ErrNotAnObject is returned when a checklist entry that is not a JSON
	// object would have to be changed.
	ErrNotAnObject = errors.New("checklist entry is not an object")
)

// ParseError reports a checklist file whose content is not a valid checklist document.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse checklist %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying decode error.
func (e *ParseError) Unwrap() error {
	return e.Err
}
