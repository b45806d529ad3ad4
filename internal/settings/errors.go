package settings

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by a Backend when nothing has been persisted yet.
var ErrNotFound = errors.New("settings: no persisted settings")

// UnknownKeyError is returned when a command addresses a key that has no
// entry in the field table.
type UnknownKeyError struct {
	Key string
}

func (e *UnknownKeyError) Error() string {
	return fmt.Sprintf("settings: unknown key %q", e.Key)
}

// TypeMismatchError is returned when a value does not fit the addressed
// field, including set operations on scalar fields.
type TypeMismatchError struct {
	Key  string
	Want string
	Got  any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("settings: key %q expects %s, got %T", e.Key, e.Want, e.Got)
}

// PersistenceError wraps a failure to encode, read or write the backing
// document.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("settings: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
