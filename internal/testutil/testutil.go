// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"strconv"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"bloodbank/m/internal/database"
	"bloodbank/m/internal/migrations"
)

// NewSQLiteDB returns a migrated in-memory SQLite database closed at test end.
func NewSQLiteDB(t testing.TB) *sqlx.DB {
	t.Helper()
	db, err := database.Connect(database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))
	return db
}

// FixedClock returns a clock frozen at the given date (UTC noon).
func FixedClock(date string) func() time.Time {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	t = t.Add(12 * time.Hour)
	return func() time.Time { return t }
}

// SequentialIDs returns deterministic ids "t-1", "t-2", ...
func SequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return prefix + "-" + strconv.Itoa(n)
	}
}

