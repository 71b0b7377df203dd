package db

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// BusyError reports that the storage file was locked by another process
// (a second CLI invocation, typically) for longer than the busy timeout.
type BusyError struct {
	Op  string
	err error
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("storage busy during %s", e.Op)
}

// Unwrap returns the underlying error for error chain support
func (e *BusyError) Unwrap() error {
	return e.err
}

// NewBusyError creates a new BusyError
func NewBusyError(op string, err error) error {
	return &BusyError{Op: op, err: err}
}

// IsBusy reports whether err is a SQLite busy or locked condition.
func IsBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}

// WrapErrorIfBusy wraps err in a BusyError when it is a busy or locked condition.
// The boolean reports whether wrapping happened.
func WrapErrorIfBusy(op string, err error) (bool, error) {
	if IsBusy(err) {
		return true, NewBusyError(op, err)
	}
	return false, err
}
