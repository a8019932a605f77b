package internal

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrImageNotFound is returned by ImageStore.Get for an unknown key.
var ErrImageNotFound = errors.New("image not found")

// StoredImage is a binary image together with its media type.
type StoredImage struct {
	Key       string
	MediaType string
	Data      []byte
}

// BackgroundImageKey is the image store key of a story background.
func BackgroundImageKey(storyID string) string {
	return "bg_" + storyID
}

// ImageStore keeps portrait and background binaries keyed by character or
// story id.
type ImageStore struct {
	db   *sql.DB
	path string
}

// NewImageStore wraps an open database that already carries the images
// table.
func NewImageStore(db *sql.DB) *ImageStore {
	return &ImageStore{db: db}
}

// OpenImageStore opens the image database at path, creating it when absent.
func OpenImageStore(path string) (*ImageStore, error) {
	db, err := OpenDatabase(path)
	if err != nil {
		return nil, &StorageError{Path: path, Op: "open", Err: err}
	}
	return &ImageStore{db: db, path: path}, nil
}

// Get loads the image stored under key.
func (s *ImageStore) Get(ctx context.Context, key string) (*StoredImage, error) {
	img := &StoredImage{Key: key}
	err := s.db.QueryRowContext(ctx,
		"SELECT media_type, data FROM images WHERE key = ?", key,
	).Scan(&img.MediaType, &img.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrImageNotFound
	}
	if err != nil {
		return nil, &StorageError{Path: s.path, Op: "get", Err: err}
	}
	return img, nil
}

// Put stores data under key, replacing any previous image.
func (s *ImageStore) Put(ctx context.Context, key string, data []byte, mediaType string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO images (key, media_type, data, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET media_type = excluded.media_type, data = excluded.data, updated_at = excluded.updated_at`,
		key, mediaType, data, time.Now().Unix(),
	)
	if err != nil {
		return &StorageError{Path: s.path, Op: "put", Err: err}
	}
	return nil
}

// Delete removes the image stored under key. Deleting an unknown key is not
// an error.
func (s *ImageStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM images WHERE key = ?", key); err != nil {
		return &StorageError{Path: s.path, Op: "delete", Err: err}
	}
	return nil
}

// Keys lists the stored keys in order.
func (s *ImageStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM images ORDER BY key")
	if err != nil {
		return nil, &StorageError{Path: s.path, Op: "list", Err: err}
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, &StorageError{Path: s.path, Op: "list", Err: err}
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Path: s.path, Op: "list", Err: err}
	}
	return keys, nil
}

// Close releases the underlying database.
func (s *ImageStore) Close() error {
	return s.db.Close()
}
