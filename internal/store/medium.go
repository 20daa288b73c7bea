package store

import (
	"context"
	"errors"
)

// Store error taxonomy. Conflict and NotFound are part of the normal
// protocol; Unavailable wraps transport-level failures from the medium.
var (
	ErrNotFound    = errors.New("store: not found")
	ErrConflict    = errors.New("store: version conflict")
	ErrUnavailable = errors.New("store: medium unavailable")
)

// Medium is a durable key -> blob store with version-checked writes.
// Read returns the blob and an opaque version token. Write succeeds only
// if the key's current version still equals the supplied token and
// returns the new token; a stale token fails with ErrConflict.
// Writing with an empty token creates the key and fails if it exists.
// The contract is medium-agnostic: a file SHA, an object-store etag or a
// relational row version all satisfy it.
type Medium interface {
	Read(ctx context.Context, key string) (data []byte, version string, err error)
	Write(ctx context.Context, key string, data []byte, version string) (newVersion string, err error)
}
