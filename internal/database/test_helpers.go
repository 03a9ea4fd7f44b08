package database

import (
	"testing"
)

func setupTestDB(t *testing.T) (*DB, func()) {
	db, err := NewDB(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	cleanup := func() {
		db.Close()
	}

	return db, cleanup
}
