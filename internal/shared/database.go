package shared

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// NewDatabase opens a connection pool for driver ("sqlite3" or "postgres").
//
// For sqlite3 the source is a file path or ":memory:"; foreign keys and a busy timeout are enabled through DSN parameters.
// An in-memory database is pinned to a single connection so every query sees the same schema.
func NewDatabase(driver, source string) (*sqlx.DB, error) {
	dsn := source
	switch driver {
	case DriverSQLite:
		dsn = sqliteDSN(source)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("%w: unsupported database driver %q", ErrInvalidConfig, driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite && strings.HasPrefix(source, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// OpenDatabase opens the database described by conf and applies its pool settings.
func OpenDatabase(conf DatabaseConfig) (*sqlx.DB, error) {
	source := conf.Path
	if conf.Driver == DriverPostgres {
		source = conf.DSN
	}

	db, err := NewDatabase(conf.Driver, source)
	if err != nil {
		return nil, err
	}

	if !strings.HasPrefix(source, ":memory:") {
		ConfigureDatabase(db, conf.MaxOpenConns, conf.MaxIdleConns)
	}
	return db, nil
}

// ConfigureDatabase sets connection pool settings for the database.
// Recommended for production use to limit connections and improve performance.
func ConfigureDatabase(db *sqlx.DB, maxOpenConns, maxIdleConns int) {
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
}

func sqliteDSN(path string) string {
	params := "_foreign_keys=on&_busy_timeout=5000"
	if !strings.HasPrefix(path, ":memory:") {
		params += "&_journal_mode=WAL"
	}
	if strings.Contains(path, "?") {
		return path + "&" + params
	}
	return path + "?" + params
}
