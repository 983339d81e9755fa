// Package store defines the hierarchical key-path document store the
// messaging core runs on: point reads, whole-document writes, shallow field
// merges, server-assigned child ids, child enumeration, and change
// subscriptions on a path. Backends live in the memory and postgres
// subpackages.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Read when no document exists at the path.
var ErrNotFound = errors.New("document not found")

// Event describes a change to the document at Path. Value is the document
// after the change.
type Event struct {
	Path  string
	Value json.RawMessage
}

// Handler receives change events. Handlers run on a subscription-owned
// goroutine and must not block indefinitely.
type Handler func(Event)

type Store interface {
	// Read returns the document at path, or ErrNotFound.
	Read(ctx context.Context, path string) (json.RawMessage, error)

	// Write replaces the document at path.
	Write(ctx context.Context, path string, value any) error

	// Update merges fields into the document at path, creating it if absent.
	Update(ctx context.Context, path string, fields map[string]any) error

	// Push stores value under a new server-assigned child id of path and
	// returns the id. Ids are time-ordered: later pushes sort after earlier
	// ones.
	Push(ctx context.Context, path string, value any) (string, error)

	// Children returns the direct child documents of path keyed by child id.
	// An absent path yields an empty map.
	Children(ctx context.Context, path string) (map[string]json.RawMessage, error)

	// Subscribe registers handler for changes at path and everything beneath
	// it. The returned func cancels the subscription.
	Subscribe(path string, handler Handler) (cancel func())
}

// TransportError wraps a store or network failure. Operations that return it
// are safe to retry; nothing was confirmed written.
type TransportError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a retryable store failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
