package store

import (
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a write violates a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate record")

// ErrInvalidID is returned when an identifier is not a hex ObjectID.
var ErrInvalidID = errors.New("invalid id")

// NewID returns a fresh identifier. Both backends use hex ObjectIDs so ids
// stay valid when data moves between them.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// ValidID reports whether id has the identifier format used by the stores.
func ValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}
