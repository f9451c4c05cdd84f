//go:build !test_db_postgres
// +build !test_db_postgres

package kvdb

import (
	"testing"
)

// NewTestDB is a helper function that creates a SQLite database for testing.
// Packages building on the SQL backends use it so the same tests run against
// postgres with the test_db_postgres build tag.
func NewTestDB(t *testing.T) Backend {
	return NewTestSqliteDB(t)
}
