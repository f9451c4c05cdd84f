package kvdb

import (
	"fmt"
	"path/filepath"
)

const (
	// BackendBolt selects the bbolt backend.
	BackendBolt = "bbolt"

	// BackendBadger selects the badger backend.
	BackendBadger = "badger"

	// BackendSqlite selects the sqlite backend.
	BackendSqlite = "sqlite"

	// BackendPostgres selects the postgres backend.
	BackendPostgres = "postgres"
)

// Config selects and configures one of the supported backends.
type Config struct {
	Backend string `long:"backend" description:"The database backend to use for storing contract state." choice:"bbolt" choice:"badger" choice:"sqlite" choice:"postgres"`

	Bolt     *BoltConfig     `group:"bbolt" namespace:"bbolt"`
	Badger   *BadgerConfig   `group:"badger" namespace:"badger"`
	Sqlite   *SqliteConfig   `group:"sqlite" namespace:"sqlite"`
	Postgres *PostgresConfig `group:"postgres" namespace:"postgres"`
}

// DefaultConfig returns a bbolt config that keeps all file based databases
// in dataDir.
func DefaultConfig(dataDir string) *Config {
	return &Config{
		Backend: BackendBolt,
		Bolt: &BoltConfig{
			DBPath:    dataDir,
			DBTimeout: defaultBoltTimeout,
		},
		Badger: &BadgerConfig{
			Dir: filepath.Join(dataDir, "badger"),
		},
		Sqlite: DefaultSqliteConfig(dataDir),
		Postgres: &PostgresConfig{
			Host:               "localhost",
			Port:               5432,
			MaxOpenConnections: 10,
		},
	}
}

// Open opens the backend selected by cfg.
func Open(cfg *Config) (Backend, error) {
	switch cfg.Backend {
	case BackendBolt, "":
		if cfg.Bolt == nil {
			return nil, fmt.Errorf("missing bbolt config")
		}

		return NewBoltBackend(cfg.Bolt)

	case BackendBadger:
		if cfg.Badger == nil {
			return nil, fmt.Errorf("missing badger config")
		}

		return NewBadgerBackend(cfg.Badger)

	case BackendSqlite:
		if cfg.Sqlite == nil {
			return nil, fmt.Errorf("missing sqlite config")
		}

		return NewSqliteBackend(cfg.Sqlite)

	case BackendPostgres:
		if cfg.Postgres == nil {
			return nil, fmt.Errorf("missing postgres config")
		}

		return NewPostgresBackend(cfg.Postgres)

	default:
		return nil, fmt.Errorf("unknown database backend: %v",
			cfg.Backend)
	}
}
