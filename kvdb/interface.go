package kvdb

import (
	"context"
	"errors"
)

var (
	// ErrKeyNotFound is returned when an exact-key lookup misses.
	ErrKeyNotFound = errors.New("key not found")

	// ErrStopIteration can be returned from a ForEachAfter callback to
	// end the iteration early. It is never returned to the caller.
	ErrStopIteration = errors.New("stop iteration")

	// ErrEmptyBucketName is returned when a bucket is requested with an
	// empty name.
	ErrEmptyBucketName = errors.New("bucket name must not be empty")
)

// Backend is the persistent store every component of the swap host is built
// on. Records live in named buckets, each bucket being an independent
// namespace with its own ascending key order.
type Backend interface {
	// View runs f inside a read-only transaction.
	View(ctx context.Context, f func(tx RTx) error) error

	// Update runs f inside a read-write transaction. If f returns an
	// error, none of its writes are persisted.
	Update(ctx context.Context, f func(tx RwTx) error) error

	// Close closes the underlying database.
	Close() error
}

// RTx is a read-only transaction.
type RTx interface {
	// ReadBucket returns the bucket with the given name. A bucket that
	// was never written to reads as empty.
	ReadBucket(name []byte) (RBucket, error)
}

// RwTx is a read-write transaction.
type RwTx interface {
	RTx

	// ReadWriteBucket returns the bucket with the given name, creating it
	// if it doesn't exist yet.
	ReadWriteBucket(name []byte) (RwBucket, error)
}

// RBucket is a read-only view of a single namespace.
type RBucket interface {
	// Get returns a copy of the value stored under key, or
	// ErrKeyNotFound.
	Get(key []byte) ([]byte, error)

	// ForEachAfter calls fn for every key strictly greater than
	// startAfter in ascending byte order. A nil startAfter starts at the
	// first key. The slices passed to fn are only valid for the duration
	// of the call.
	ForEachAfter(startAfter []byte, fn func(k, v []byte) error) error
}

// RwBucket is a writable namespace.
type RwBucket interface {
	RBucket

	// Put stores value under key, replacing any previous value.
	Put(key, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key []byte) error
}

// Has reports whether key is present in the bucket.
func Has(b RBucket, key []byte) (bool, error) {
	_, err := b.Get(key)
	switch {
	case err == nil:
		return true, nil

	case errors.Is(err, ErrKeyNotFound):
		return false, nil

	default:
		return false, err
	}
}

// copyBytes returns a copy of b that is safe to hold after the transaction
// that produced b is closed.
func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}

	c := make([]byte, len(b))
	copy(c, b)

	return c
}
