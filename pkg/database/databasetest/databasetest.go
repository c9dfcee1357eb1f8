// Package databasetest opens throwaway sqlite databases for repo and service tests.
package databasetest

import (
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-apd/pkg/database"
)

// New returns an empty in-memory database private to the calling test.
// The pool is pinned to one connection so every query sees the same memory db.
func New(t testing.TB) *sqlx.DB {
	t.Helper()
	db, err := database.Open(database.Config{
		Driver:   database.DriverSQLite,
		DSN:      ":memory:",
		MaxConns: 1,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetConnMaxLifetime(0)
	t.Cleanup(func() { _ = db.Close() })
	return db
}
