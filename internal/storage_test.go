package internal

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/iksnae/ellipsis-codec/testutil"
)

func TestNewImageStore(t *testing.T) {
	db := testutil.CreateInMemoryDB(t)

	store := NewImageStore(db)
	if store == nil {
		t.Fatal("NewImageStore() returned nil")
	}
	if store.db != db {
		t.Error("NewImageStore() did not set database correctly")
	}
}

func TestImageStore_Get(t *testing.T) {
	db := testutil.CreateInMemoryDB(t)
	testutil.InsertImage(t, db, "char-1", "image/png", []byte{1, 2, 3})
	store := NewImageStore(db)
	ctx := context.Background()

	img, err := store.Get(ctx, "char-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if img.MediaType != "image/png" || !bytes.Equal(img.Data, []byte{1, 2, 3}) {
		t.Errorf("Get() = %+v, want image/png [1 2 3]", img)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrImageNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrImageNotFound", err)
	}
}

func TestImageStore_PutReplaces(t *testing.T) {
	store, err := OpenImageStore(filepath.Join(testutil.CreateTempDir(t), "images.db"))
	if err != nil {
		t.Fatalf("OpenImageStore() error = %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	if err := store.Put(ctx, "char-1", []byte("first"), "image/jpeg"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Put(ctx, "char-1", []byte("second"), "image/png"); err != nil {
		t.Fatalf("Put() replace error = %v", err)
	}
	if err := store.Put(ctx, BackgroundImageKey("story-1"), []byte("bg"), "image/png"); err != nil {
		t.Fatalf("Put() background error = %v", err)
	}

	img, err := store.Get(ctx, "char-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(img.Data) != "second" || img.MediaType != "image/png" {
		t.Errorf("Get() = %q %s, want second image/png", img.Data, img.MediaType)
	}

	keys, err := store.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if want := []string{"bg_story-1", "char-1"}; !reflect.DeepEqual(keys, want) {
		t.Errorf("Keys() = %v, want %v", keys, want)
	}
}

func TestImageStore_Delete(t *testing.T) {
	db := testutil.CreateInMemoryDB(t)
	testutil.InsertImage(t, db, "char-1", "image/png", []byte{1})
	store := NewImageStore(db)
	ctx := context.Background()

	if err := store.Delete(ctx, "char-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, "char-1"); !errors.Is(err, ErrImageNotFound) {
		t.Errorf("Get() after Delete() error = %v, want ErrImageNotFound", err)
	}
	if err := store.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete(missing) error = %v, want nil", err)
	}
}

func TestOpenImageStore_Error(t *testing.T) {
	_, err := OpenImageStore(filepath.Join(testutil.CreateTempDir(t), "missing", "images.db"))
	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("OpenImageStore() error = %v, want *StorageError", err)
	}
	if storageErr.Op != "open" {
		t.Errorf("StorageError.Op = %q, want open", storageErr.Op)
	}
}
