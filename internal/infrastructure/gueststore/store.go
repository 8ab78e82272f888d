// Package gueststore persists guest cart and favorites snapshots between
// requests and across restarts.
package gueststore

import (
	"context"
	"errors"
)

// ErrStoreClosed is returned by operations on a closed store
var ErrStoreClosed = errors.New("gueststore: store closed")

// Store is a string-keyed byte store with per-entry expiry.
// Get reports ok=false for absent or expired keys.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}
