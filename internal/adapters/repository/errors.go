package repository

import "errors"

// Sentinel kinds for persistence errors.
var (
	ErrNotFound    = errors.New("document not found")
	ErrPersistence = errors.New("persistence operation failed")
)
