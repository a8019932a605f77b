package pngmeta

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/iksnae/ellipsis-codec/internal"
)

// TextEntry is a decoded tEXt or zTXt chunk.
type TextEntry struct {
	Keyword    string
	Text       string
	Compressed bool
}

// ReadChara returns the raw payload of the first chara chunk in buf, the
// base64 text exactly as stored. Images without one yield ok == false and no
// error.
func ReadChara(buf []byte) (payload string, ok bool, err error) {
	var found *Chunk
	_, err = walk("read", buf, func(c Chunk) bool {
		if keyword, _, isText := c.Text(); isText && keyword == CharaKeyword {
			found = &c
			return false
		}
		return true
	})
	if err != nil {
		return "", false, err
	}
	if found == nil {
		return "", false, nil
	}

	entry, err := decodeText(*found)
	if err != nil {
		return "", false, err
	}
	return entry.Text, true, nil
}

// TextEntries decodes every tEXt and zTXt chunk of buf in file order.
func TextEntries(buf []byte) ([]TextEntry, error) {
	chunks, err := Chunks(buf)
	if err != nil {
		return nil, err
	}

	var entries []TextEntry
	for _, c := range chunks {
		if _, _, ok := c.Text(); !ok {
			continue
		}
		entry, err := decodeText(c)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func decodeText(c Chunk) (TextEntry, error) {
	keyword, rest, _ := c.Text()
	if c.Type == TypeText {
		return TextEntry{Keyword: keyword, Text: string(rest)}, nil
	}

	// zTXt: one compression method byte, then a zlib stream
	if len(rest) < 1 {
		return TextEntry{}, &internal.ParseError{Source: "png", Key: keyword, Err: fmt.Errorf("zTXt chunk without compression method")}
	}
	text, err := inflate(rest[1:])
	if err != nil {
		return TextEntry{}, &internal.ParseError{Source: "png", Key: keyword, Err: err}
	}
	return TextEntry{Keyword: keyword, Text: string(text), Compressed: true}, nil
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	return out, nil
}
