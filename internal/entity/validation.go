package entity

import (
	"fmt"
	"strings"
)

// Validation limits.
const (
	// maxNameLength is the maximum length for an entity name.
	maxNameLength = 128

	// maxUniqueIDLength is the maximum length for a unique ID.
	maxUniqueIDLength = 255
)

// ValidateName checks an entity name for validity.
// Names must be non-blank and at most maxNameLength characters.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateUniqueID checks an integration-scoped unique ID.
// Unique IDs must be stable across restarts: integrations derive them from
// vendor identifiers (serial numbers, beacon IDs), never from array indexes.
func ValidateUniqueID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: unique id cannot be empty", ErrInvalidUniqueID)
	}
	if len(id) > maxUniqueIDLength {
		return fmt.Errorf("%w: unique id exceeds %d characters", ErrInvalidUniqueID, maxUniqueIDLength)
	}
	return nil
}

// ValidatePlatform checks that a platform value is recognised.
func ValidatePlatform(p Platform) error {
	for _, valid := range AllPlatforms() {
		if p == valid {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrInvalidPlatform, p)
}

// Validate checks an entity for structural validity before persistence.
func Validate(e *Entity) error {
	if e == nil {
		return fmt.Errorf("%w: entity is nil", ErrInvalid)
	}
	if err := ValidateName(e.Name); err != nil {
		return err
	}
	if err := ValidateUniqueID(e.UniqueID); err != nil {
		return err
	}
	if err := ValidatePlatform(e.Platform); err != nil {
		return err
	}
	if e.EntryID == "" {
		return fmt.Errorf("%w: entry id is required", ErrInvalid)
	}
	return nil
}
