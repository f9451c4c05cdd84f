package kvdb

import (
	"database/sql"
	"errors"
	"net/url"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4/database"
	sqlite_migrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// defaultSqliteFileName is the file name of the sqlite database inside the
// data directory.
const defaultSqliteFileName = "swap.sqlite"

// sqlitePragmas are applied to every connection the driver opens.
var sqlitePragmas = []string{
	"foreign_keys=on",
	"journal_mode=WAL",
	"busy_timeout=5000",
}

// SqliteConfig holds the configuration of the sqlite backend.
type SqliteConfig struct {
	// SkipMigrations leaves the schema untouched on startup.
	SkipMigrations bool `long:"skipmigrations" description:"Skip applying migrations on startup."`

	// DatabaseFileName is the path of the database file.
	DatabaseFileName string `long:"dbfile" description:"The full path to the database."`
}

// dsn returns the modernc.org/sqlite data source name of the database file,
// with the pragmas passed as _pragma query parameters.
func (c *SqliteConfig) dsn() string {
	query := url.Values{"_pragma": sqlitePragmas}

	return c.DatabaseFileName + "?" + query.Encode()
}

// SqliteBackend is a key-value backend stored in a single sqlite file.
type SqliteBackend struct {
	cfg *SqliteConfig

	*BaseDB
}

// NewSqliteBackend opens the sqlite database of the config and brings its
// schema up to date.
func NewSqliteBackend(cfg *SqliteConfig) (*SqliteBackend, error) {
	db, err := sql.Open("sqlite", cfg.dsn())
	if err != nil {
		return nil, err
	}

	base, err := newBaseDB(db, &sqlMigration{
		skip:   cfg.SkipMigrations,
		fsys:   sqlSchemas,
		dbName: "sqlite",
		driver: func(db *sql.DB) (database.Driver, error) {
			return sqlite_migrate.WithInstance(
				db, &sqlite_migrate.Config{},
			)
		},
	}, sql.LevelDefault, isSqliteRetryable)
	if err != nil {
		return nil, err
	}

	log.Infof("Opened sqlite database %v", cfg.DatabaseFileName)

	return &SqliteBackend{cfg: cfg, BaseDB: base}, nil
}

// DefaultSqliteConfig returns the sqlite config for the given data
// directory.
func DefaultSqliteConfig(dataDir string) *SqliteConfig {
	return &SqliteConfig{
		DatabaseFileName: filepath.Join(dataDir, defaultSqliteFileName),
	}
}

// isSqliteRetryable reports whether err is a lock conflict with another
// writer.
func isSqliteRetryable(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	code := sqliteErr.Code() & 0xff

	return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
}
