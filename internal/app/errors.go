package service

import (
	"errors"

	"github.com/okian/coachlens/internal/adapters/repository"
)

// Sentinel kinds for service errors.
var (
	ErrNotStarted   = errors.New("service not started")
	ErrBackpressure = errors.New("ingest queue full")
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = repository.ErrNotFound
)
