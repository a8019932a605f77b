package testutil

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sort"
	"testing"
)

// gradient returns a small opaque test image.
func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}

// PNGFixture encodes a w x h test image as PNG
func PNGFixture(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, gradient(w, h)); err != nil {
		t.Fatalf("Failed to encode PNG fixture: %v", err)
	}
	return buf.Bytes()
}

// JPEGFixture encodes a w x h test image as JPEG
func JPEGFixture(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gradient(w, h), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("Failed to encode JPEG fixture: %v", err)
	}
	return buf.Bytes()
}

// Chunk builds a complete PNG chunk record, CRC included. The CRC comes from
// hash/crc32 so tests can check the codec's own table against it.
func Chunk(typ string, data []byte) []byte {
	out := make([]byte, 0, 12+len(data))
	out = binary.BigEndian.AppendUint32(out, uint32(len(data)))
	out = append(out, typ...)
	out = append(out, data...)
	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	return binary.BigEndian.AppendUint32(out, crc.Sum32())
}

// InsertBeforeIEND splices chunk in front of the trailing IEND chunk of an
// image produced by PNGFixture.
func InsertBeforeIEND(t *testing.T, pngData, chunk []byte) []byte {
	t.Helper()
	const iendLen = 12
	if len(pngData) < 8+iendLen || string(pngData[len(pngData)-8:len(pngData)-4]) != "IEND" {
		t.Fatal("fixture does not end with IEND")
	}
	cut := len(pngData) - iendLen
	out := make([]byte, 0, len(pngData)+len(chunk))
	out = append(out, pngData[:cut]...)
	out = append(out, chunk...)
	return append(out, pngData[cut:]...)
}

// CardPNG embeds v as base64 JSON in an uncompressed tEXt chara chunk.
func CardPNG(t *testing.T, v interface{}) []byte {
	t.Helper()
	payload := base64.StdEncoding.EncodeToString(JSONMarshal(t, v))
	data := append([]byte("chara\x00"), payload...)
	return InsertBeforeIEND(t, PNGFixture(t, 4, 4), Chunk("tEXt", data))
}

// ZipFixture builds a zip archive holding files, written in name order.
func ZipFixture(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Failed to create zip member %s: %v", name, err)
		}
		if _, err := w.Write(files[name]); err != nil {
			t.Fatalf("Failed to write zip member %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
	return buf.Bytes()
}

// MustJSON marshals v with indentation, failing the test on error
func MustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal JSON: %v", err)
	}
	return data
}
