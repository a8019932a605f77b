package internal

import (
	"path/filepath"
	"testing"

	"github.com/iksnae/ellipsis-codec/testutil"
)

func TestOpenDatabase(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T) string
		wantErr bool
	}{
		{
			name: "new file database",
			setup: func(t *testing.T) string {
				return filepath.Join(testutil.CreateTempDir(t), "images.db")
			},
			wantErr: false,
		},
		{
			name: "in-memory database",
			setup: func(t *testing.T) string {
				return MemoryDatabase
			},
			wantErr: false,
		},
		{
			name: "missing directory",
			setup: func(t *testing.T) string {
				return filepath.Join(testutil.CreateTempDir(t), "missing", "images.db")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbPath := tt.setup(t)
			db, err := OpenDatabase(dbPath)
			if (err != nil) != tt.wantErr {
				t.Errorf("OpenDatabase() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			defer db.Close()

			var count int
			if err := db.QueryRow("SELECT COUNT(*) FROM images").Scan(&count); err != nil {
				t.Errorf("images table not created: %v", err)
			}
		})
	}
}

func TestOpenDatabaseReadOnly(t *testing.T) {
	dir := testutil.CreateTempDir(t)

	if _, err := OpenDatabaseReadOnly(filepath.Join(dir, "nonexistent.db")); err == nil {
		t.Error("OpenDatabaseReadOnly() on a missing file should fail")
	}

	path := filepath.Join(dir, "images.db")
	rw, err := OpenDatabase(path)
	if err != nil {
		t.Fatalf("OpenDatabase() error = %v", err)
	}
	rw.Close()

	ro, err := OpenDatabaseReadOnly(path)
	if err != nil {
		t.Fatalf("OpenDatabaseReadOnly() error = %v", err)
	}
	defer ro.Close()

	if _, err := ro.Exec("INSERT INTO images (key, media_type, data, updated_at) VALUES ('k', 'image/png', x'00', 0)"); err == nil {
		t.Error("write through a read-only database should fail")
	}
}
