// Package uuid generates run identifiers.
package uuid

import (
	"github.com/google/uuid"
)

// NewRunID returns a time-ordered UUIDv7 so run history sorts by creation.
// It falls back to a random v4 if the v7 clock sequence cannot be read.
func NewRunID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
