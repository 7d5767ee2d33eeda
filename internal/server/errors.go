package server

import (
	"errors"
	"fmt"
)

// ErrEmptyUser is returned when Replicate is called without a user name.
var ErrEmptyUser = errors.New("replicating user name must not be empty")

// ErrNilSnapshot is returned when ReplicateSnapshot is given no snapshot.
var ErrNilSnapshot = errors.New("snapshot must not be nil")

// MergeError reports a client snapshot that cannot be merged. The whole
// replication is aborted; no row of the snapshot is written.
type MergeError struct {
	// Code identifies the error category.
	Code MergeErrorCode

	// Table and RowID identify the client row holding the bad reference.
	Table string
	RowID int64

	// Column and MissingID identify the reference that did not resolve.
	Column    string
	MissingID int64
}

// MergeErrorCode categorizes merge errors.
type MergeErrorCode string

const (
	// ErrCodeNotFound indicates a client row references a dimension or
	// entry id absent from the snapshot.
	ErrCodeNotFound MergeErrorCode = "NOT_FOUND"
)

// Error implements the error interface.
func (e *MergeError) Error() string {
	return fmt.Sprintf("%s: %s row %d references missing %s %d",
		e.Code, e.Table, e.RowID, e.Column, e.MissingID)
}

// IsNotFound returns true if err is a MergeError for a dangling reference.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	var me *MergeError
	if errors.As(err, &me) {
		return me.Code == ErrCodeNotFound
	}
	return false
}

func notFound(table string, rowID int64, column string, missingID int64) *MergeError {
	return &MergeError{
		Code:      ErrCodeNotFound,
		Table:     table,
		RowID:     rowID,
		Column:    column,
		MissingID: missingID,
	}
}
