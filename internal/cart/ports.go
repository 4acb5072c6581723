package cart

import (
	"context"
	"errors"
)

// ErrMalformedSnapshot is returned by a RemoteStore when a record exists but
// has no usable items field. The store treats it as absent.
var ErrMalformedSnapshot = errors.New("malformed remote cart snapshot")

// LocalStore is a device-scoped key/value store.
// Read returns ok=false when the key does not exist.
type LocalStore interface {
	Read(key string) ([]byte, bool, error)
	Write(key string, data []byte) error
	Delete(key string) error
}

// RemoteStore keeps one cart snapshot per user.
//
// Get returns (nil, nil) when the user has no snapshot.
// Put writes items and a server-assigned update time, leaving any other
// fields of the remote record untouched.
type RemoteStore interface {
	Get(ctx context.Context, userID string) (*RemoteSnapshot, error)
	Put(ctx context.Context, userID string, items []Item) error
}

// Listener receives a private copy of the items after each mutation.
type Listener func(items []Item)
