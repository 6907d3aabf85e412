package testutil

import (
	"testing"

	"havit-go/internal/database"
	"havit-go/internal/database/migrations"
)

// NewTestDatabase creates an in-memory catalog migrated to the latest
// schema, without the unique path index. It is closed when the test ends.
func NewTestDatabase(t *testing.T) *database.SQLiteDatabase {
	t.Helper()
	return NewTestDatabaseWithOptions(t, migrations.Options{})
}

// NewTestDatabaseWithOptions is NewTestDatabase with explicit migration
// options, e.g. to enable the unique path index.
func NewTestDatabaseWithOptions(t *testing.T, opts migrations.Options) *database.SQLiteDatabase {
	t.Helper()

	db, err := database.NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})

	if _, err := migrations.MigrateUp(db.DB(), opts); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return db
}

// CountRecords returns the number of cataloged files, failing the test
// on error.
func CountRecords(t *testing.T, db *database.SQLiteDatabase) int64 {
	t.Helper()
	n, err := db.CountRecords()
	if err != nil {
		t.Fatalf("CountRecords() error = %v", err)
	}
	return n
}
