package database

import "errors"

var (
	// ErrNotFound indicates a requested document does not exist.
	ErrNotFound = errors.New("database: not found")
	// ErrConflict indicates the supplied revision is not the stored one.
	ErrConflict = errors.New("database: revision conflict")
	// ErrInvalidQuery reports a malformed index, find, or view request.
	ErrInvalidQuery = errors.New("database: invalid query")
)
