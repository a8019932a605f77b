package internal

import "fmt"

// FormatError reports input whose container structure is not what the
// selected format requires: a bad PNG signature, an unknown file extension,
// a missing archive member. It is fatal to the call that produced it.
type FormatError struct {
	Op     string // "read", "write", "import", "export"
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("format error: %s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("format error: %s: %s", e.Op, e.Reason)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// NewFormatError returns a FormatError without a cause.
func NewFormatError(op, reason string) *FormatError {
	return &FormatError{Op: op, Reason: reason}
}

// MissingAssetError reports an export whose target format needs an image
// that could not be resolved.
type MissingAssetError struct {
	CharacterID string
	Format      string
	Err         error
}

func (e *MissingAssetError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("missing asset [%s] character %s: %v", e.Format, e.CharacterID, e.Err)
	}
	return fmt.Sprintf("missing asset [%s] character %s: no image available", e.Format, e.CharacterID)
}

func (e *MissingAssetError) Unwrap() error {
	return e.Err
}

// StorageError represents errors accessing the image store
type StorageError struct {
	Path string
	Op   string // "open", "get", "put", "migrate"
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ParseError represents malformed embedded data (JSON, base64, compressed
// streams). It is propagated unmodified to the caller.
type ParseError struct {
	Source string // "card", "archive", "native", "png"
	Key    string // member name or field
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error [%s] %s: %v", e.Source, e.Key, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ExportError represents errors writing an export to its destination
type ExportError struct {
	Format string
	Path   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [%s] %s: %v", e.Format, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}
