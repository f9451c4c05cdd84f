package kvdb

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	"github.com/golang-migrate/migrate/v4/database"
	postgres_migrate "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
)

// PostgresConfig holds the postgres database configuration.
type PostgresConfig struct {
	SkipMigrations     bool   `long:"skipmigrations" description:"Skip applying migrations on startup."`
	Host               string `long:"host" description:"Database server hostname."`
	Port               int    `long:"port" description:"Database server port."`
	User               string `long:"user" description:"Database user."`
	Password           string `long:"password" description:"Database user's password."`
	DBName             string `long:"dbname" description:"Database name to use."`
	MaxOpenConnections int32  `long:"maxconnections" description:"Max open connections to keep alive to the database server."`
	RequireSSL         bool   `long:"requiressl" description:"Whether to require using SSL (mode: require) when connecting to the server."`
}

// DSN returns the connection URL of the database. The password is masked if
// the DSN is meant for the log.
func (s *PostgresConfig) DSN(hidePassword bool) string {
	password := s.Password
	if hidePassword {
		password = "****"
	}

	sslMode := "disable"
	if s.RequireSSL {
		sslMode = "require"
	}

	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(s.User, password),
		Host:     fmt.Sprintf("%v:%d", s.Host, s.Port),
		Path:     s.DBName,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}

	return dsn.String()
}

// PostgresBackend is a key-value backend on a Postgres server. Writes run
// serializable and are retried on serialization conflicts.
type PostgresBackend struct {
	cfg *PostgresConfig

	*BaseDB
}

// NewPostgresBackend connects to the server of the config and brings the
// schema up to date.
func NewPostgresBackend(cfg *PostgresConfig) (*PostgresBackend, error) {
	log.Infof("Using SQL database '%s'", cfg.DSN(true))

	db, err := sql.Open("postgres", cfg.DSN(false))
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConnections > 0 {
		db.SetMaxOpenConns(int(cfg.MaxOpenConnections))
	}

	base, err := newBaseDB(db, &sqlMigration{
		skip: cfg.SkipMigrations,
		fsys: newReplacerFS(sqlSchemas, map[string]string{
			"BLOB": "BYTEA",
		}),
		dbName: cfg.DBName,
		driver: func(db *sql.DB) (database.Driver, error) {
			return postgres_migrate.WithInstance(
				db, &postgres_migrate.Config{},
			)
		},
	}, sql.LevelSerializable, isPostgresRetryable)
	if err != nil {
		return nil, err
	}

	return &PostgresBackend{cfg: cfg, BaseDB: base}, nil
}

// isPostgresRetryable reports whether err is a serialization conflict that
// goes away when the transaction is attempted again.
func isPostgresRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}

	switch string(pqErr.Code) {
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return true

	default:
		return false
	}
}
