package domain

import "errors"

var (
	// ErrNotFound is returned when a selection or active selection lookup
	// matches no row.
	ErrNotFound = errors.New("not found")

	// ErrMalformedAttribute marks a profile attribute that is present but
	// not parseable; callers treat it the same as a missing attribute.
	ErrMalformedAttribute = errors.New("malformed attribute")
)
