// Package storage provides the key-value abstraction the chain persists
// through, with in-memory, Badger and bbolt backends.
package storage

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("key not found")

// DB is the interface for key-value storage.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates over all keys with the given prefix in key order.
	// The callback receives a copy of the key and value.
	// Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

// Batch buffers writes that Commit applies atomically.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Commit() error
}

// Batcher is implemented by databases that support atomic batches.
type Batcher interface {
	NewBatch() Batch
}

// Store is a DB with atomic batches. Every backend in this package is one.
type Store interface {
	DB
	Batcher
}

// Backend names.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendBolt   = "bolt"
)

// Open opens a store of the named backend at path. The memory backend
// ignores path.
func Open(backend, path string) (Store, error) {
	switch backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendBadger:
		return NewBadger(path)
	case BackendBolt:
		return NewBolt(path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// batchOp is one buffered write; a nil value means delete.
type batchOp struct {
	key   []byte
	value []byte
}

func copyBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
