package kvdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// NewTestSqliteDB is a helper function that creates an SQLite database for
// testing.
func NewTestSqliteDB(t *testing.T) *SqliteBackend {
	t.Helper()

	t.Logf("Creating new SQLite DB for testing")

	dbFileName := filepath.Join(t.TempDir(), "tmp.db")
	sqlDB, err := NewSqliteBackend(&SqliteConfig{
		DatabaseFileName: dbFileName,
		SkipMigrations:   false,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, sqlDB.DB.Close())
	})

	return sqlDB
}

// NewTestPostgresDB is a helper function that creates a Postgres database for
// testing.
func NewTestPostgresDB(t *testing.T) *PostgresBackend {
	t.Helper()

	t.Logf("Creating new Postgres DB for testing")

	sqlFixture := NewTestPgFixture(t, DefaultPostgresFixtureLifetime)
	store, err := NewPostgresBackend(sqlFixture.GetConfig())
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, store.DB.Close())
		sqlFixture.TearDown(t)
	})

	return store
}

// NewTestBoltDB creates a bbolt backend in a temporary directory.
func NewTestBoltDB(t *testing.T) *BoltBackend {
	t.Helper()

	db, err := NewBoltBackend(&BoltConfig{DBPath: t.TempDir()})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	return db
}

// NewTestBadgerDB creates an in-memory badger backend.
func NewTestBadgerDB(t *testing.T) *BadgerBackend {
	t.Helper()

	db, err := NewBadgerBackend(&BadgerConfig{InMemory: true})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	return db
}
