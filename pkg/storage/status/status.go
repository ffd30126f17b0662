// Package status declares the errors returned by implementations of storage.Store.
//
// The sentinels live apart from pkg/storage so that store implementations and
// their callers share them without importing each other.
package status

import "github.com/oneconcern/monorel/pkg/errors"

// Sentinel errors of stores
var (
	// ErrNotExists is returned when reading a key absent from the store
	ErrNotExists = errors.New("object doesn't exist")

	// ErrUnauthorized is returned when the store rejects the credentials
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the credentials may not access a key
	ErrForbidden = errors.New("forbidden")

	// ErrExists is returned by exclusive writes to a key already present
	ErrExists = errors.New("exists already")

	// ErrInvalidResource is returned for a missing or malformed bucket or path
	ErrInvalidResource = errors.New("invalid storage resource name")

	// ErrStorageAPI wraps any other backend failure
	ErrStorageAPI = errors.New("storage API error")
)
