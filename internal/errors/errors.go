package errors

import "errors"

// Lookup errors. Fatal to the specific lookup, never retried.
var (
	ErrBoardNotFound   = errors.New("board not found")
	ErrSectionNotFound = errors.New("section not found")
	ErrItemNotFound    = errors.New("item not found")
)

// Precondition and session errors.
var (
	ErrRootNotFound     = errors.New("download root directory not found")
	ErrNotAuthenticated = errors.New("no active session")
)
