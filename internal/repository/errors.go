package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when a conditional update finds the row in a
	// different state than the caller expected.
	ErrConflict = errors.New("concurrent update conflict")
)
