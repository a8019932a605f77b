package internal

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestFormatError(t *testing.T) {
	err := NewFormatError("read", "invalid PNG signature")

	errorMsg := err.Error()
	if !strings.Contains(errorMsg, "format error") {
		t.Errorf("FormatError.Error() should contain 'format error', got: %q", errorMsg)
	}
	if !strings.Contains(errorMsg, "invalid PNG signature") {
		t.Errorf("FormatError.Error() should contain reason, got: %q", errorMsg)
	}

	cause := errors.New("unexpected EOF")
	wrapped := &FormatError{Op: "read", Reason: "truncated chunk", Err: cause}
	if !errors.Is(wrapped, cause) {
		t.Error("FormatError.Unwrap() should return original error")
	}
}

func TestFormatError_As(t *testing.T) {
	err := fmt.Errorf("import story.txt: %w", NewFormatError("import", "unsupported file type"))

	var formatErr *FormatError
	if !errors.As(err, &formatErr) {
		t.Fatal("errors.As() should find FormatError in chain")
	}
	if formatErr.Op != "import" {
		t.Errorf("FormatError.Op = %q, want %q", formatErr.Op, "import")
	}
}

func TestMissingAssetError(t *testing.T) {
	err := &MissingAssetError{CharacterID: "char-1", Format: "png"}

	errorMsg := err.Error()
	if !strings.Contains(errorMsg, "missing asset") {
		t.Errorf("MissingAssetError.Error() should contain 'missing asset', got: %q", errorMsg)
	}
	if !strings.Contains(errorMsg, "char-1") {
		t.Errorf("MissingAssetError.Error() should contain character id, got: %q", errorMsg)
	}

	cause := errors.New("HTTP 404")
	wrapped := &MissingAssetError{CharacterID: "char-1", Format: "png", Err: cause}
	if !errors.Is(wrapped, cause) {
		t.Error("MissingAssetError.Unwrap() should return original error")
	}
}

func TestStorageError(t *testing.T) {
	originalErr := errors.New("permission denied")
	err := &StorageError{
		Path: "/test/images.db",
		Op:   "open",
		Err:  originalErr,
	}

	errorMsg := err.Error()
	if !strings.Contains(errorMsg, "storage error") {
		t.Errorf("StorageError.Error() should contain 'storage error', got: %q", errorMsg)
	}
	if !strings.Contains(errorMsg, "/test/images.db") {
		t.Errorf("StorageError.Error() should contain path, got: %q", errorMsg)
	}
	if !errors.Is(err, originalErr) {
		t.Error("StorageError.Unwrap() should return original error")
	}
}

func TestParseError(t *testing.T) {
	originalErr := errors.New("invalid JSON")
	err := &ParseError{
		Source: "archive",
		Key:    "characters/a/character.json",
		Err:    originalErr,
	}

	errorMsg := err.Error()
	if !strings.Contains(errorMsg, "parse error") {
		t.Errorf("ParseError.Error() should contain 'parse error', got: %q", errorMsg)
	}
	if !strings.Contains(errorMsg, "archive") {
		t.Errorf("ParseError.Error() should contain source, got: %q", errorMsg)
	}
	if !errors.Is(err, originalErr) {
		t.Error("ParseError.Unwrap() should return original error")
	}
}

func TestExportError(t *testing.T) {
	originalErr := errors.New("write failed")
	err := &ExportError{
		Format: "byaf",
		Path:   "/output/story.byaf",
		Err:    originalErr,
	}

	errorMsg := err.Error()
	if !strings.Contains(errorMsg, "export error") {
		t.Errorf("ExportError.Error() should contain 'export error', got: %q", errorMsg)
	}
	if !strings.Contains(errorMsg, "byaf") {
		t.Errorf("ExportError.Error() should contain format, got: %q", errorMsg)
	}
	if !errors.Is(err, originalErr) {
		t.Error("ExportError.Unwrap() should return original error")
	}
}
