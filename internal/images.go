package internal

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

// Media types the codec distinguishes.
const (
	MediaTypePNG  = "image/png"
	MediaTypeJPEG = "image/jpeg"
	MediaTypeWebP = "image/webp"
)

// PortraitOptions controls how imported portraits are normalized.
type PortraitOptions struct {
	MaxHeight int
	Quality   int // JPEG quality, 1-100
}

// DefaultPortraitOptions caps portraits at 2000px height, JPEG quality 85.
func DefaultPortraitOptions() PortraitOptions {
	return PortraitOptions{MaxHeight: 2000, Quality: 85}
}

// DetectMediaType sniffs the media type of data from its content.
func DetectMediaType(data []byte) string {
	return mimetype.Detect(data).String()
}

// IsPNG reports whether data is a PNG image.
func IsPNG(data []byte) bool {
	return mimetype.Detect(data).Is(MediaTypePNG)
}

// ImageExtension maps a media type to the file extension used for archive
// image members. Unknown types fall back to png.
func ImageExtension(mediaType string) string {
	switch mediaType {
	case MediaTypeJPEG, "image/jpg":
		return "jpg"
	case MediaTypeWebP:
		return "webp"
	default:
		return "png"
	}
}

func decodeImage(data []byte) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	LogDebug("decoded %s image %dx%d", format, img.Bounds().Dx(), img.Bounds().Dy())
	return img, nil
}

// ProcessPortrait scales an image down to opts.MaxHeight, keeping the aspect
// ratio, and re-encodes it as JPEG. It returns the encoded bytes and their
// media type.
func ProcessPortrait(data []byte, opts PortraitOptions) ([]byte, string, error) {
	img, err := decodeImage(data)
	if err != nil {
		return nil, "", err
	}

	b := img.Bounds()
	if opts.MaxHeight > 0 && b.Dy() > opts.MaxHeight {
		width := b.Dx() * opts.MaxHeight / b.Dy()
		if width < 1 {
			width = 1
		}
		img = transform.Resize(img, width, opts.MaxHeight, transform.Linear)
	}

	quality := opts.Quality
	if quality < 1 || quality > 100 {
		quality = DefaultPortraitOptions().Quality
	}

	var buf bytes.Buffer
	if err := imgio.JPEGEncoder(quality)(&buf, img); err != nil {
		return nil, "", fmt.Errorf("encode portrait: %w", err)
	}
	return buf.Bytes(), MediaTypeJPEG, nil
}

// ConvertToPNG re-encodes data as PNG. PNG input is returned unchanged.
func ConvertToPNG(data []byte) ([]byte, error) {
	if IsPNG(data) {
		return data, nil
	}
	img, err := decodeImage(data)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imgio.PNGEncoder()(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
