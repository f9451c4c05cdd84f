package kvdb

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var (
	// dbFileName is the default file name of the swap host database.
	dbFileName = "swap.db"

	// metaBucketKey stores all the meta information concerning the state
	// of the database. It is reserved and can't be used as a user bucket.
	metaBucketKey = []byte("metadata")

	// dbVersionKey is a boltdb key and it's used for storing/retrieving
	// current database version.
	dbVersionKey = []byte("dbp")

	// ErrDBReversion is returned when detecting an attempt to revert to a
	// prior database version.
	ErrDBReversion = fmt.Errorf("swap db cannot revert to prior version")

	// ErrReservedBucket is returned when a caller asks for the meta
	// bucket.
	ErrReservedBucket = errors.New("bucket name is reserved")

	byteOrder = binary.BigEndian

	defaultBoltTimeout = 10 * time.Second
)

// migration is a function which takes a prior outdated version of the database
// instances and mutates the key/bucket structure to arrive at a more
// up-to-date version of the database.
type migration func(tx *bbolt.Tx) error

var (
	// migrations holds all bolt schema migrations in order. Version n of
	// the database has applied the first n entries.
	migrations = []migration{}

	latestDBVersion = uint32(len(migrations))
)

// BoltConfig holds the bbolt backend options.
type BoltConfig struct {
	// DBPath is the directory the database file is created in.
	DBPath string `long:"dbpath" description:"Directory that holds the bbolt database file."`

	// DBTimeout is how long we wait to obtain the file lock.
	DBTimeout time.Duration `long:"dbtimeout" description:"Time to wait for the bbolt file lock."`

	// NoFreelistSync skips syncing the freelist to disk.
	NoFreelistSync bool `long:"nofreelistsync" description:"Don't sync the freelist to disk, trading faster writes for slower startup."`
}

// fileExists returns true if the file exists, and false otherwise.
func fileExists(path string) bool {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}

	return true
}

// BoltBackend is the default Backend, storing every bucket as a top level
// bbolt bucket.
type BoltBackend struct {
	db *bbolt.DB
}

// A compile-time flag to ensure that BoltBackend implements the Backend
// interface.
var _ Backend = (*BoltBackend)(nil)

// NewBoltBackend opens (and if needed creates) a bbolt database in the
// configured directory.
func NewBoltBackend(cfg *BoltConfig) (*BoltBackend, error) {
	// If the target path for the store doesn't exist, then we'll create
	// it now before we proceed.
	if !fileExists(cfg.DBPath) {
		if err := os.MkdirAll(cfg.DBPath, 0700); err != nil {
			return nil, err
		}
	}

	timeout := cfg.DBTimeout
	if timeout == 0 {
		timeout = defaultBoltTimeout
	}

	path := filepath.Join(cfg.DBPath, dbFileName)
	bdb, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout:        timeout,
		NoFreelistSync: cfg.NoFreelistSync,
		FreelistType:   bbolt.FreelistMapType,
	})
	if err != nil {
		return nil, err
	}

	// Check if the meta bucket exists. If it exists, we consider the
	// database as initialized and assume the meta bucket contains the db
	// version.
	err = bdb.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(metaBucketKey) != nil {
			return nil
		}

		log.Infof("Initializing new database with version %v",
			latestDBVersion)

		return setDBVersion(tx, latestDBVersion)
	})
	if err != nil {
		_ = bdb.Close()
		return nil, err
	}

	// Finally, before we start, we'll sync the DB versions to pick up any
	// possible DB migrations.
	if err := syncVersions(bdb); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	return &BoltBackend{db: bdb}, nil
}

// View runs f inside a read-only bbolt transaction.
func (b *BoltBackend) View(ctx context.Context, f func(tx RTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.db.View(func(tx *bbolt.Tx) error {
		return f(&boltTx{tx: tx})
	})
}

// Update runs f inside a read-write bbolt transaction. bbolt rolls the
// transaction back when f returns an error.
func (b *BoltBackend) Update(ctx context.Context,
	f func(tx RwTx) error) error {

	if err := ctx.Err(); err != nil {
		return err
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		return f(&boltTx{tx: tx})
	})
}

// Close closes the underlying bbolt database.
func (b *BoltBackend) Close() error {
	return b.db.Close()
}

// boltTx wraps a bbolt transaction.
type boltTx struct {
	tx *bbolt.Tx
}

// ReadBucket returns the named bucket. Buckets that don't exist yet read as
// empty.
func (t *boltTx) ReadBucket(name []byte) (RBucket, error) {
	if err := checkBucketName(name); err != nil {
		return nil, err
	}

	return &boltBucket{bucket: t.tx.Bucket(name)}, nil
}

// ReadWriteBucket returns the named bucket, creating it if needed.
func (t *boltTx) ReadWriteBucket(name []byte) (RwBucket, error) {
	if err := checkBucketName(name); err != nil {
		return nil, err
	}

	bucket, err := t.tx.CreateBucketIfNotExists(name)
	if err != nil {
		return nil, err
	}

	return &boltBucket{bucket: bucket}, nil
}

// boltBucket wraps a bbolt bucket. A nil bucket is a bucket that was never
// created and reads as empty.
type boltBucket struct {
	bucket *bbolt.Bucket
}

// Get returns a copy of the value stored under key.
func (b *boltBucket) Get(key []byte) ([]byte, error) {
	if b.bucket == nil {
		return nil, ErrKeyNotFound
	}

	value := b.bucket.Get(key)
	if value == nil {
		return nil, ErrKeyNotFound
	}

	return copyBytes(value), nil
}

// ForEachAfter iterates the bucket in ascending key order, starting after
// the given cursor.
func (b *boltBucket) ForEachAfter(startAfter []byte,
	fn func(k, v []byte) error) error {

	if b.bucket == nil {
		return nil
	}

	c := b.bucket.Cursor()

	var k, v []byte
	if startAfter == nil {
		k, v = c.First()
	} else {
		k, v = c.Seek(startAfter)
		if k != nil && bytes.Equal(k, startAfter) {
			k, v = c.Next()
		}
	}

	for ; k != nil; k, v = c.Next() {
		// Only plain key/value pairs, we never nest buckets.
		if v == nil {
			continue
		}

		err := fn(k, v)
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
func (b *boltBucket) Put(key, value []byte) error {
	return b.bucket.Put(key, value)
}

// Delete removes key from the bucket.
func (b *boltBucket) Delete(key []byte) error {
	return b.bucket.Delete(key)
}

// checkBucketName rejects empty and reserved bucket names.
func checkBucketName(name []byte) error {
	switch {
	case len(name) == 0:
		return ErrEmptyBucketName

	case bytes.Equal(name, metaBucketKey):
		return ErrReservedBucket
	}

	return nil
}

// getDBVersion retrieves the current db version.
func getDBVersion(db *bbolt.DB) (uint32, error) {
	var version uint32

	err := db.View(func(tx *bbolt.Tx) error {
		metaBucket := tx.Bucket(metaBucketKey)
		if metaBucket == nil {
			return errors.New("bucket does not exist")
		}

		data := metaBucket.Get(dbVersionKey)
		// If no version key found, assume version is 0.
		if data != nil {
			version = byteOrder.Uint32(data)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return version, nil
}

// setDBVersion updates the current db version.
func setDBVersion(tx *bbolt.Tx, version uint32) error {
	metaBucket, err := tx.CreateBucketIfNotExists(metaBucketKey)
	if err != nil {
		return fmt.Errorf("set db version: %w", err)
	}

	scratch := make([]byte, 4)
	byteOrder.PutUint32(scratch, version)

	return metaBucket.Put(dbVersionKey, scratch)
}

// syncVersions applies all pending migrations to the database inside a
// single transaction, so a failing migration leaves the database untouched.
func syncVersions(db *bbolt.DB) error {
	currentVersion, err := getDBVersion(db)
	if err != nil {
		return err
	}

	log.Infof("Checking for schema update: latest_version=%v, "+
		"db_version=%v", latestDBVersion, currentVersion)

	switch {
	// If the database reports a higher version that we are aware of, the
	// user is probably trying to revert to a prior version. We fail here
	// to prevent reversions and unintended corruption.
	case currentVersion > latestDBVersion:
		log.Errorf("Refusing to revert from db_version=%d to "+
			"lower version=%d", currentVersion,
			latestDBVersion)

		return ErrDBReversion

	// If the current database version matches the latest version number,
	// then we don't need to perform any migrations.
	case currentVersion == latestDBVersion:
		return nil
	}

	log.Infof("Performing database schema migration")

	return db.Update(func(tx *bbolt.Tx) error {
		for v := currentVersion; v < latestDBVersion; v++ {
			log.Infof("Applying migration #%v", v+1)

			if err := migrations[v](tx); err != nil {
				log.Infof("Unable to apply migration #%v",
					v+1)

				return err
			}
		}

		return setDBVersion(tx, latestDBVersion)
	})
}
