package blobstore

import (
	"context"
	"errors"
)

// ErrStorageUnavailable wraps any backend failure so callers can map it to a
// single chunk outcome without knowing the storage engine.
var ErrStorageUnavailable = errors.New("storage unavailable")

// Store persists raw audio chunk bytes and returns a durable locator for the
// (session, sequence) pair. Locators are stable and human-diagnosable.
type Store interface {
	Put(ctx context.Context, sessionID string, sequence int, data []byte) (string, error)
}
