package apperrors

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
	ErrCacheMiss    = errors.New("cache miss")
	ErrNoPhraser    = errors.New("no phraser configured for tier")
)
