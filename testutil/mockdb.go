package testutil

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

// CreateInMemoryDB creates an in-memory SQLite database carrying the images
// table for testing
func CreateInMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create in-memory database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS images (
		key        TEXT PRIMARY KEY,
		media_type TEXT NOT NULL,
		data       BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)`
	if _, err := db.Exec(createTableSQL); err != nil {
		t.Fatalf("Failed to create images table: %v", err)
	}

	return db
}

// InsertImage inserts an image row
func InsertImage(t *testing.T, db *sql.DB, key, mediaType string, data []byte) {
	t.Helper()
	_, err := db.Exec("INSERT INTO images (key, media_type, data, updated_at) VALUES (?, ?, ?, 0)", key, mediaType, data)
	if err != nil {
		t.Fatalf("Failed to insert image: %v", err)
	}
}
