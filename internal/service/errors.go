package service

import (
	"github.com/listenupapp/readtrack-server/internal/errors"
	"github.com/listenupapp/readtrack-server/internal/store"
)

// storeError translates a repository error into a domain error. Missing
// records and lost compare-and-swap races keep their meaning; everything
// else is an I/O failure the caller may retry.
func storeError(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return errors.NotFound(op + ": not found")
	case errors.Is(err, store.ErrVersionConflict):
		return errors.Conflict(op + ": modified concurrently").WithCause(err)
	case errors.Is(err, store.ErrAlreadyExists):
		return errors.AlreadyExists(op + ": already exists")
	default:
		return errors.StorageUnavailable(err, op)
	}
}
