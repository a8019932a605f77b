// Package codec translates stories between the canonical model and the
// supported interchange formats.
package codec

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/iksnae/ellipsis-codec/internal"
)

// Format identifies an interchange format.
type Format int

const (
	// FormatCard is a V2 character card embedded in a PNG chara chunk.
	FormatCard Format = iota
	// FormatArchive is a BYAF zip bundle.
	FormatArchive
	// FormatNative is a plain JSON dump of the story.
	FormatNative
)

// Formats lists every supported format.
var Formats = []Format{FormatCard, FormatArchive, FormatNative}

// ErrNoPrimaryCharacter is returned when an export needs a primary character
// that the story does not contain.
var ErrNoPrimaryCharacter = errors.New("primary character not found")

func (f Format) String() string {
	switch f {
	case FormatCard:
		return "card"
	case FormatArchive:
		return "archive"
	case FormatNative:
		return "native"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Extension is the file extension exports of this format carry.
func (f Format) Extension() string {
	switch f {
	case FormatCard:
		return "png"
	case FormatArchive:
		return "byaf"
	default:
		return "json"
	}
}

// MediaType is the media type of an exported payload.
func (f Format) MediaType() string {
	switch f {
	case FormatCard:
		return internal.MediaTypePNG
	case FormatArchive:
		return "application/zip"
	default:
		return "application/json"
	}
}

// ParseFormat maps a user supplied format name to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "png", "card", "v2":
		return FormatCard, nil
	case "byaf", "zip", "archive":
		return FormatArchive, nil
	case "json", "native":
		return FormatNative, nil
	default:
		return 0, fmt.Errorf("unsupported format: %s (supported: png, byaf, json)", name)
	}
}

// FormatForFilename picks the import format from a file extension.
func FormatForFilename(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return FormatCard, nil
	case ".zip", ".byaf":
		return FormatArchive, nil
	case ".json":
		return FormatNative, nil
	default:
		return 0, internal.NewFormatError("import", fmt.Sprintf("unsupported file type %q (use .png, .byaf, .zip or .json)", filepath.Base(name)))
	}
}

// ImportOptions tunes a single import.
type ImportOptions struct {
	SkipImages bool
	Portrait   internal.PortraitOptions
}

// ImportResult is a freshly built story plus the images found alongside it.
type ImportResult struct {
	Story  *internal.Story
	Format Format
	// Portrait belongs to PrimaryCharacterID; Key is set to that id.
	Portrait           *internal.StoredImage
	PrimaryCharacterID string
	// Background is keyed by internal.BackgroundImageKey(Story.ID).
	Background *internal.StoredImage
}

// ExportRequest selects what to export.
type ExportRequest struct {
	Story *internal.Story
	// Narrative supplies chat history, static entries and the world map.
	// It may be nil; the native format also uses it to fill in the story's
	// matching narrative stub.
	Narrative          *internal.Narrative
	PrimaryCharacterID string
}

// ExportResult is a payload ready to be offered as a download.
type ExportResult struct {
	Data      []byte
	Filename  string
	MediaType string
}

// Codec parses and serializes one format.
type Codec interface {
	Format() Format
	Parse(ctx context.Context, raw []byte, opts ImportOptions) (*ImportResult, error)
	Serialize(ctx context.Context, req ExportRequest) (*ExportResult, error)
}

// Deps are the collaborators the codecs share.
type Deps struct {
	IDs    internal.IDGenerator
	Assets *AssetResolver
	Now    func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.IDs == nil {
		d.IDs = internal.UUIDGenerator{}
	}
	if d.Assets == nil {
		d.Assets = &AssetResolver{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// NewCodec creates the codec for format
func NewCodec(format Format, deps Deps) (Codec, error) {
	deps = deps.withDefaults()
	switch format {
	case FormatCard:
		return &CardCodec{deps: deps}, nil
	case FormatArchive:
		return &ArchiveCodec{deps: deps}, nil
	case FormatNative:
		return &NativeCodec{deps: deps}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %v", format)
	}
}

var filenameReplacer = strings.NewReplacer(
	"/", "-", `\`, "-", "?", "-", "%", "-", "*", "-",
	":", "-", "|", "-", `"`, "-", "<", "-", ">", "-",
)

// ExportFilename derives a download name from the story name.
func ExportFilename(storyName string, format Format) string {
	name := strings.TrimSpace(storyName)
	if name == "" {
		name = "story"
	}
	return filenameReplacer.Replace(name + "." + format.Extension())
}

func timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
