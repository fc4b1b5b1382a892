package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Connect opens and pings the database for the given driver.
func Connect(driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// A single connection keeps SQLite writers from tripping over each
		// other and lets ":memory:" databases survive between calls.
		db.SetMaxOpenConns(1)
	}
	return db, nil
}
