// Package statestore provides the narrow key/value persistence interface
// the compliance engine writes audit entries through, together with
// in-memory, SQLite and Redis backends.
//
// Values are stored as JSON. Keys are opaque strings; the audit trail uses
// "audit:<entry id>".
//
//	store := statestore.NewMemoryStore()
//	err := store.SetState(ctx, "audit:123", entry, statestore.Metadata{
//	    Persistent: true,
//	    TTL:        365 * 24 * time.Hour,
//	})
package statestore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a key does not exist or has expired.
	ErrNotFound = errors.New("state not found")

	// ErrClosed is returned when the store has been closed.
	ErrClosed = errors.New("state store closed")
)

// Metadata controls how a value is kept.
type Metadata struct {
	// Persistent asks the backend to keep the value across restarts.
	// Backends without durable storage ignore it.
	Persistent bool

	// TTL is the lifetime of the value. Zero means no expiry.
	TTL time.Duration
}

// Store is a key/value state store.
type Store interface {
	// SetState stores value under key, replacing any previous value.
	SetState(ctx context.Context, key string, value any, meta Metadata) error

	// GetState decodes the value stored under key into dest.
	// Returns ErrNotFound when the key is missing or expired.
	GetState(ctx context.Context, key string, dest any) error

	// DeleteState removes key. Deleting a missing key is not an error.
	DeleteState(ctx context.Context, key string) error

	// Keys returns the live keys starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases backend resources.
	Close() error
}

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Error wraps a backend failure with the operation and key involved.
type Error struct {
	Backend   string
	Operation string
	Key       string
	Cause     error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s state store %s %q: %v", e.Backend, e.Operation, e.Key, e.Cause)
	}
	return fmt.Sprintf("%s state store %s: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(backend, op, key string, cause error) *Error {
	return &Error{Backend: backend, Operation: op, Key: key, Cause: cause}
}
