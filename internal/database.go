package internal

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const imagesSchema = `
CREATE TABLE IF NOT EXISTS images (
	key        TEXT PRIMARY KEY,
	media_type TEXT NOT NULL,
	data       BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// MemoryDatabase is the path that opens a private in-memory database.
const MemoryDatabase = ":memory:"

// OpenDatabase opens (creating if needed) the SQLite image database and
// applies the schema.
func OpenDatabase(path string) (*sql.DB, error) {
	dsn := path
	if path != MemoryDatabase {
		dsn = "file:" + path + "?mode=rwc"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == MemoryDatabase {
		// every new connection would see its own empty database
		db.SetMaxOpenConns(1)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := db.Exec(imagesSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}

	return db, nil
}

// OpenDatabaseReadOnly opens an existing image database without write
// access. It fails when the file does not exist.
func OpenDatabaseReadOnly(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return db, nil
}
