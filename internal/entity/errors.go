package entity

import "errors"

// Domain errors for the entity package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, entity.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when an entity ID does not exist.
	ErrNotFound = errors.New("entity: not found")

	// ErrExists is returned when creating an entity whose (entry, unique id)
	// pair already exists.
	ErrExists = errors.New("entity: already exists")

	// ErrInvalid is returned when entity validation fails.
	ErrInvalid = errors.New("entity: invalid")

	// ErrInvalidPlatform is returned when a platform value is not recognised.
	ErrInvalidPlatform = errors.New("entity: invalid platform")

	// ErrInvalidName is returned when an entity name is empty or too long.
	ErrInvalidName = errors.New("entity: invalid name")

	// ErrInvalidUniqueID is returned when a unique ID is empty or too long.
	ErrInvalidUniqueID = errors.New("entity: invalid unique id")
)
