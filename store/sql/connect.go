package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Open connects to the database and wraps the handle in a bun.DB with the
// matching dialect. SQLite handles are pinned to a single connection so
// shared-cache memory databases keep their schema across queries.
func Open(driver string, dsn string) (*bun.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlstore: dsn is required")
	}
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverPostgres, "postgresql", "pg":
		sqlDB, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: open postgres: %w", err)
		}
		return bun.NewDB(sqlDB, pgdialect.New()), nil
	case DriverSQLite, "sqlite":
		sqlDB, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: open sqlite: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
		return bun.NewDB(sqlDB, sqlitedialect.New()), nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
}

// OpenFactory opens the database and builds the full store set on it.
func OpenFactory(driver string, dsn string) (*RepositoryFactory, error) {
	db, err := Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	return NewRepositoryFactoryFromDB(db)
}
