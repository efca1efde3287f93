package db

import (
	"path/filepath"
	"testing"

	"github.com/banshee-data/ecg.report/internal/monitoring"
)

func init() {
	monitoring.SetLogger(nil)
}

// newTestDB returns a migrated database in a temp dir, closed at cleanup.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
