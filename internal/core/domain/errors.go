package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested chunk or reference does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateID indicates a chunk id is already registered.
	ErrDuplicateID = errors.New("duplicate chunk id")

	// ErrSelfReference indicates an attempt to link a chunk to itself.
	ErrSelfReference = errors.New("self reference")

	// ErrTypeMismatch indicates a reference removal with a type filter that
	// does not match the stored edge type.
	ErrTypeMismatch = errors.New("reference type mismatch")

	// ErrInvalidConfig indicates out-of-range similarity engine or cache
	// configuration, rejected at construction.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrBackendUnavailable indicates the embedding or clustering backend is
	// unconfigured or unreachable. Raised eagerly on first use, never
	// swallowed.
	ErrBackendUnavailable = errors.New("backend unavailable")
)
