package services

import (
	"errors"

	"github.com/evently/apiserver/internal/media"
	"github.com/evently/apiserver/internal/store"
)

var (
	ErrInvalidID       = errors.New("invalid id")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrUpstream        = errors.New("upstream failure")
)

// classify translates store and media errors into the service taxonomy.
// Errors it does not recognise are returned unchanged.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrInvalidID):
		return ErrInvalidID
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrDuplicate):
		return ErrConflict
	case errors.Is(err, media.ErrUpstream):
		return errors.Join(ErrUpstream, err)
	default:
		return err
	}
}
