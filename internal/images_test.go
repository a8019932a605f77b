package internal

import (
	"bytes"
	"image"
	"testing"

	"github.com/iksnae/ellipsis-codec/testutil"
)

func TestDetectMediaType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"png", testutil.PNGFixture(t, 2, 2), MediaTypePNG},
		{"jpeg", testutil.JPEGFixture(t, 2, 2), MediaTypeJPEG},
		{"text", []byte("hello"), "text/plain; charset=utf-8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectMediaType(tt.data); got != tt.want {
				t.Errorf("DetectMediaType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestImageExtension(t *testing.T) {
	tests := []struct {
		mediaType string
		want      string
	}{
		{MediaTypePNG, "png"},
		{MediaTypeJPEG, "jpg"},
		{"image/jpg", "jpg"},
		{MediaTypeWebP, "webp"},
		{"image/gif", "png"},
		{"", "png"},
	}

	for _, tt := range tests {
		if got := ImageExtension(tt.mediaType); got != tt.want {
			t.Errorf("ImageExtension(%q) = %q, want %q", tt.mediaType, got, tt.want)
		}
	}
}

func TestProcessPortrait(t *testing.T) {
	tests := []struct {
		name      string
		w, h      int
		maxHeight int
		wantW     int
		wantH     int
	}{
		{"downscaled", 30, 60, 20, 10, 20},
		{"untouched", 8, 10, 20, 8, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, mediaType, err := ProcessPortrait(testutil.PNGFixture(t, tt.w, tt.h), PortraitOptions{MaxHeight: tt.maxHeight, Quality: 85})
			if err != nil {
				t.Fatalf("ProcessPortrait() error = %v", err)
			}
			if mediaType != MediaTypeJPEG {
				t.Errorf("ProcessPortrait() media type = %q, want %q", mediaType, MediaTypeJPEG)
			}
			cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
			if err != nil {
				t.Fatalf("DecodeConfig() error = %v", err)
			}
			if format != "jpeg" {
				t.Errorf("output format = %q, want jpeg", format)
			}
			if cfg.Width != tt.wantW || cfg.Height != tt.wantH {
				t.Errorf("output size = %dx%d, want %dx%d", cfg.Width, cfg.Height, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestProcessPortrait_InvalidData(t *testing.T) {
	if _, _, err := ProcessPortrait([]byte("not an image"), DefaultPortraitOptions()); err == nil {
		t.Error("ProcessPortrait() expected error for invalid data")
	}
}

func TestConvertToPNG(t *testing.T) {
	pngData := testutil.PNGFixture(t, 3, 3)
	same, err := ConvertToPNG(pngData)
	if err != nil {
		t.Fatalf("ConvertToPNG(png) error = %v", err)
	}
	if !bytes.Equal(same, pngData) {
		t.Error("ConvertToPNG(png) should return the input unchanged")
	}

	converted, err := ConvertToPNG(testutil.JPEGFixture(t, 5, 4))
	if err != nil {
		t.Fatalf("ConvertToPNG(jpeg) error = %v", err)
	}
	if !IsPNG(converted) {
		t.Errorf("ConvertToPNG(jpeg) media type = %q, want png", DetectMediaType(converted))
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(converted))
	if err != nil {
		t.Fatalf("DecodeConfig() error = %v", err)
	}
	if cfg.Width != 5 || cfg.Height != 4 {
		t.Errorf("converted size = %dx%d, want 5x4", cfg.Width, cfg.Height)
	}
}
