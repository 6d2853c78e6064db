package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrMissingConfiguration = errors.New("missing configuration")
	ErrNotFound             = errors.New("not found")
	ErrBackend              = errors.New("backend error")
	ErrUnknownOperation     = errors.New("unknown operation")

	// Both match ErrBackend under errors.Is.
	ErrMalformedResponse = fmt.Errorf("%w: malformed response", ErrBackend)
	ErrNoImage           = fmt.Errorf("%w: no image produced", ErrBackend)
)
