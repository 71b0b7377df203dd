package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

func TestWrapErrorIfBusy(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wrapped bool
	}{
		{"busy", sqlite3.Error{Code: sqlite3.ErrBusy}, true},
		{"locked wrapped", fmt.Errorf("exec: %w", sqlite3.Error{Code: sqlite3.ErrLocked}), true},
		{"constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped, err := WrapErrorIfBusy("set value", tt.err)
			assert.Equal(t, tt.wrapped, wrapped)

			var busy *BusyError
			assert.Equal(t, tt.wrapped, errors.As(err, &busy))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
