package kvdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"time"

	"github.com/golang-migrate/migrate/v4/database"
)

const (
	// sqlPageSize is the number of rows fetched per range query. Rows of
	// a page are buffered before the callback runs, since the drivers
	// don't allow new statements while a result set is open.
	sqlPageSize = 100

	// defaultMaxTxRetries is the number of times a transaction that
	// failed with a retryable error is attempted again.
	defaultMaxTxRetries = 10

	// retryBaseDelay is the base delay between transaction retries.
	retryBaseDelay = 20 * time.Millisecond
)

const (
	getEntryQuery = `SELECT value FROM kv_entries WHERE bucket = $1 AND key = $2`

	putEntryQuery = `INSERT INTO kv_entries (bucket, key, value)
VALUES ($1, $2, $3)
ON CONFLICT (bucket, key) DO UPDATE SET value = excluded.value`

	deleteEntryQuery = `DELETE FROM kv_entries WHERE bucket = $1 AND key = $2`

	firstPageQuery = `SELECT key, value FROM kv_entries
WHERE bucket = $1
ORDER BY key ASC
LIMIT $2`

	pageAfterQuery = `SELECT key, value FROM kv_entries
WHERE bucket = $1 AND key > $2
ORDER BY key ASC
LIMIT $3`
)

// BaseDB is the shared implementation of the SQL backends. Every bucket is a
// set of rows of the kv_entries table sharing the same bucket column.
type BaseDB struct {
	*sql.DB

	// writeIsolation is the isolation level used for read-write
	// transactions.
	writeIsolation sql.IsolationLevel

	// isRetryable reports whether a failed transaction can be attempted
	// again. Nil means no error is retried.
	isRetryable func(error) bool

	maxRetries int
}

// A compile-time flag to ensure that BaseDB implements the Backend interface.
var _ Backend = (*BaseDB)(nil)

// sqlMigration describes how the schema of a SQL backend is migrated.
type sqlMigration struct {
	skip   bool
	fsys   fs.FS
	dbName string
	driver func(*sql.DB) (database.Driver, error)
}

// newBaseDB migrates the schema of an opened database and wraps it. The
// database is closed if the migration fails.
func newBaseDB(db *sql.DB, migration *sqlMigration,
	writeIsolation sql.IsolationLevel,
	isRetryable func(error) bool) (*BaseDB, error) {

	if !migration.skip {
		driver, err := migration.driver(db)
		if err == nil {
			err = applyMigrations(
				migration.fsys, driver, "migrations",
				migration.dbName,
			)
		}
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("unable to migrate %v: %w",
				migration.dbName, err)
		}
	}

	return &BaseDB{
		DB:             db,
		writeIsolation: writeIsolation,
		isRetryable:    isRetryable,
		maxRetries:     defaultMaxTxRetries,
	}, nil
}

// View runs f inside a read-only SQL transaction.
func (db *BaseDB) View(ctx context.Context, f func(tx RTx) error) error {
	return db.ExecTx(ctx, true, func(tx *sql.Tx) error {
		return f(&sqlTx{ctx: ctx, tx: tx})
	})
}

// Update runs f inside a read-write SQL transaction.
func (db *BaseDB) Update(ctx context.Context, f func(tx RwTx) error) error {
	return db.ExecTx(ctx, false, func(tx *sql.Tx) error {
		return f(&sqlTx{ctx: ctx, tx: tx})
	})
}

// ExecTx is a wrapper for txBody to abstract the creation and commit of a db
// transaction. Transactions failing with a retryable error are executed
// again with a randomized backoff.
func (db *BaseDB) ExecTx(ctx context.Context, readOnly bool,
	txBody func(*sql.Tx) error) error {

	for attempt := 0; ; attempt++ {
		err := db.execTxOnce(ctx, readOnly, txBody)
		if err == nil {
			return nil
		}

		if db.isRetryable == nil || !db.isRetryable(err) ||
			attempt >= db.maxRetries {

			return err
		}

		delay := retryBaseDelay +
			time.Duration(rand.Int63n(int64(retryBaseDelay)))

		log.Debugf("Retrying transaction after %v (attempt %d): %v",
			delay, attempt+1, err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// execTxOnce runs txBody in a single transaction.
func (db *BaseDB) execTxOnce(ctx context.Context, readOnly bool,
	txBody func(*sql.Tx) error) error {

	opts := &sql.TxOptions{ReadOnly: readOnly}
	if !readOnly {
		opts.Isolation = db.writeIsolation
	}

	tx, err := db.DB.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	// Rollback is safe to call even if the tx is already closed, so if
	// the tx commits successfully, this is a no-op.
	defer tx.Rollback() //nolint: errcheck

	if err := txBody(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// Close closes the database connection pool.
func (db *BaseDB) Close() error {
	return db.DB.Close()
}

// sqlTx wraps a SQL transaction.
type sqlTx struct {
	ctx context.Context
	tx  *sql.Tx
}

// ReadBucket returns a view of the named bucket.
func (t *sqlTx) ReadBucket(name []byte) (RBucket, error) {
	if err := checkBucketName(name); err != nil {
		return nil, err
	}

	return &sqlBucket{sqlTx: t, name: name}, nil
}

// ReadWriteBucket returns a writable view of the named bucket. Buckets are
// implicit in the table, so nothing has to be created.
func (t *sqlTx) ReadWriteBucket(name []byte) (RwBucket, error) {
	if err := checkBucketName(name); err != nil {
		return nil, err
	}

	return &sqlBucket{sqlTx: t, name: name}, nil
}

// sqlBucket is the set of rows of one bucket.
type sqlBucket struct {
	*sqlTx

	name []byte
}

// Get returns the value stored under key.
func (b *sqlBucket) Get(key []byte) ([]byte, error) {
	var value []byte
	err := b.tx.QueryRowContext(
		b.ctx, getEntryQuery, b.name, nonNil(key),
	).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrKeyNotFound

	case err != nil:
		return nil, err
	}

	return nonNil(value), nil
}

// ForEachAfter iterates the bucket in ascending key order, one page of rows
// at a time.
func (b *sqlBucket) ForEachAfter(startAfter []byte,
	fn func(k, v []byte) error) error {

	cursor := startAfter
	for {
		page, err := b.page(cursor)
		if err != nil {
			return err
		}

		for _, entry := range page {
			err := fn(entry.key, entry.value)
			switch {
			case errors.Is(err, ErrStopIteration):
				return nil

			case err != nil:
				return err
			}
		}

		if len(page) < sqlPageSize {
			return nil
		}

		cursor = page[len(page)-1].key
	}
}

// kvEntry is a single buffered row.
type kvEntry struct {
	key   []byte
	value []byte
}

// page fetches the next page of rows after cursor.
func (b *sqlBucket) page(cursor []byte) ([]kvEntry, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if cursor == nil {
		rows, err = b.tx.QueryContext(
			b.ctx, firstPageQuery, b.name, sqlPageSize,
		)
	} else {
		rows, err = b.tx.QueryContext(
			b.ctx, pageAfterQuery, b.name, cursor, sqlPageSize,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("range query: %w", err)
	}
	defer rows.Close()

	page := make([]kvEntry, 0, sqlPageSize)
	for rows.Next() {
		var entry kvEntry
		if err := rows.Scan(&entry.key, &entry.value); err != nil {
			return nil, err
		}

		entry.key = nonNil(entry.key)
		entry.value = nonNil(entry.value)
		page = append(page, entry)
	}

	return page, rows.Err()
}

// Put stores value under key.
func (b *sqlBucket) Put(key, value []byte) error {
	_, err := b.tx.ExecContext(
		b.ctx, putEntryQuery, b.name, nonNil(key), nonNil(value),
	)

	return err
}

// Delete removes key from the bucket.
func (b *sqlBucket) Delete(key []byte) error {
	_, err := b.tx.ExecContext(b.ctx, deleteEntryQuery, b.name, nonNil(key))

	return err
}

// nonNil maps nil to an empty slice, since database/sql turns a nil slice
// into NULL.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}

	return b
}
