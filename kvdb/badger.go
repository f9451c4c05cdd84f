package kvdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/dgraph-io/badger/v4"
)

// BadgerConfig holds the badger backend options.
type BadgerConfig struct {
	// Dir is the directory badger keeps its value log and LSM tree in.
	Dir string `long:"dir" description:"Directory for the badger database."`

	// InMemory runs badger without touching disk. Used by tests and
	// throwaway devnets.
	InMemory bool `long:"inmemory" description:"Keep the badger database in memory only."`

	// SyncWrites fsyncs every commit.
	SyncWrites bool `long:"syncwrites" description:"Sync every write to disk before a commit returns."`
}

// BadgerBackend stores all buckets in a single badger keyspace. Every key is
// prefixed with the length-prefixed bucket name, so the keys of one bucket
// are contiguous and keep their relative byte order.
type BadgerBackend struct {
	db *badger.DB
}

// A compile-time flag to ensure that BadgerBackend implements the Backend
// interface.
var _ Backend = (*BadgerBackend)(nil)

// NewBadgerBackend opens a badger database.
func NewBadgerBackend(cfg *BadgerConfig) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("unable to open badger db: %w", err)
	}

	log.Infof("Opened badger database (in_memory=%v)", cfg.InMemory)

	return &BadgerBackend{db: db}, nil
}

// View runs f inside a read-only badger transaction.
func (b *BadgerBackend) View(ctx context.Context, f func(tx RTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.db.View(func(txn *badger.Txn) error {
		return f(&badgerTx{txn: txn})
	})
}

// Update runs f inside a read-write badger transaction. Badger discards the
// transaction when f returns an error.
func (b *BadgerBackend) Update(ctx context.Context,
	f func(tx RwTx) error) error {

	if err := ctx.Err(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		return f(&badgerTx{txn: txn})
	})
}

// Close closes the badger database.
func (b *BadgerBackend) Close() error {
	return b.db.Close()
}

// badgerTx wraps a badger transaction.
type badgerTx struct {
	txn *badger.Txn
}

// ReadBucket returns a view of the named bucket.
func (t *badgerTx) ReadBucket(name []byte) (RBucket, error) {
	prefix, err := badgerPrefix(name)
	if err != nil {
		return nil, err
	}

	return &badgerBucket{txn: t.txn, prefix: prefix}, nil
}

// ReadWriteBucket returns a writable view of the named bucket. Badger
// buckets exist implicitly, so nothing has to be created.
func (t *badgerTx) ReadWriteBucket(name []byte) (RwBucket, error) {
	prefix, err := badgerPrefix(name)
	if err != nil {
		return nil, err
	}

	return &badgerBucket{txn: t.txn, prefix: prefix}, nil
}

// badgerPrefix returns the key prefix of a bucket: the big endian uint16
// length of the name followed by the name itself.
func badgerPrefix(name []byte) ([]byte, error) {
	if err := checkBucketName(name); err != nil {
		return nil, err
	}
	if len(name) > math.MaxUint16 {
		return nil, fmt.Errorf("bucket name too long: %d bytes",
			len(name))
	}

	prefix := make([]byte, 2, 2+len(name))
	byteOrder.PutUint16(prefix, uint16(len(name)))

	return append(prefix, name...), nil
}

// badgerBucket is a prefix scoped view of a badger transaction.
type badgerBucket struct {
	txn    *badger.Txn
	prefix []byte
}

// fullKey returns the badger key for a bucket key.
func (b *badgerBucket) fullKey(key []byte) []byte {
	k := make([]byte, 0, len(b.prefix)+len(key))
	k = append(k, b.prefix...)

	return append(k, key...)
}

// Get returns a copy of the value stored under key.
func (b *badgerBucket) Get(key []byte) ([]byte, error) {
	item, err := b.txn.Get(b.fullKey(key))
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, ErrKeyNotFound

	case err != nil:
		return nil, err
	}

	return item.ValueCopy(nil)
}

// ForEachAfter iterates the bucket in ascending key order, starting after
// the given cursor.
func (b *badgerBucket) ForEachAfter(startAfter []byte,
	fn func(k, v []byte) error) error {

	it := b.txn.NewIterator(badger.IteratorOptions{
		PrefetchValues: true,
		PrefetchSize:   100,
		Prefix:         b.prefix,
	})
	defer it.Close()

	start := b.prefix
	if startAfter != nil {
		start = b.fullKey(startAfter)
	}

	for it.Seek(start); it.ValidForPrefix(b.prefix); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)[len(b.prefix):]

		if startAfter != nil && bytes.Equal(key, startAfter) {
			continue
		}

		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		err = fn(key, value)
		switch {
		case errors.Is(err, ErrStopIteration):
			return nil

		case err != nil:
			return err
		}
	}

	return nil
}

// Put stores value under key.
func (b *badgerBucket) Put(key, value []byte) error {
	return b.txn.Set(b.fullKey(key), copyBytes(value))
}

// Delete removes key from the bucket.
func (b *badgerBucket) Delete(key []byte) error {
	return b.txn.Delete(b.fullKey(key))
}
