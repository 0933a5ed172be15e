package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidLimit = errors.New("invalid triage limit")
	ErrInvalidInput = errors.New("invalid input")
	ErrDuplicate    = errors.New("duplicate id")
	ErrClosed       = errors.New("store closed")
)
