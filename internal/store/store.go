// Package store provides the persistent key-value mapping backing the
// dedup ledger and the user directory. Values are opaque serialized blobs;
// the callers own the encoding.
package store

import (
	"context"
	"errors"
)

var ErrKeyNotFound = errors.New("store: key not found")

type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}
