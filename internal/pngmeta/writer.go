package pngmeta

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iksnae/ellipsis-codec/internal"
)

// compressionDeflate is the only zTXt compression method PNG defines.
const compressionDeflate = 0

// EncodePayload serializes v the way chara chunks carry it: JSON, then
// standard padded base64 of the UTF-8 bytes.
func EncodePayload(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// DecodePayload reverses EncodePayload into v.
func DecodePayload(payload string, v any) error {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return &internal.ParseError{Source: "png", Key: CharaKeyword, Err: err}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &internal.ParseError{Source: "png", Key: CharaKeyword, Err: err}
	}
	return nil
}

// CharaChunk builds a complete zTXt chara chunk holding payload.
func CharaChunk(payload string) ([]byte, error) {
	var data bytes.Buffer
	data.WriteString(CharaKeyword)
	data.WriteByte(0)
	data.WriteByte(compressionDeflate)

	zw := zlib.NewWriter(&data)
	if _, err := zw.Write([]byte(payload)); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}

	return EncodeChunk(TypeZText, data.Bytes()), nil
}

// WriteChara returns a copy of buf with v embedded in a new chara chunk
// placed immediately before IEND. Every chunk of buf is kept byte for byte;
// anything trailing the IEND chunk is dropped.
func WriteChara(buf []byte, v any) ([]byte, error) {
	payload, err := EncodePayload(v)
	if err != nil {
		return nil, err
	}
	return WriteCharaPayload(buf, payload)
}

// WriteCharaPayload embeds an already encoded payload.
func WriteCharaPayload(buf []byte, payload string) ([]byte, error) {
	var end *Chunk
	_, err := walk("write", buf, func(c Chunk) bool {
		if c.Type == TypeEnd {
			end = &c
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if end == nil {
		return nil, internal.NewFormatError("write", "IEND chunk not found")
	}

	chunk, err := CharaChunk(payload)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(buf)+len(chunk))
	out = append(out, buf[:end.Offset]...)
	out = append(out, chunk...)
	return append(out, buf[end.Offset:end.Offset+end.Size()]...), nil
}

// StripChara returns buf without its chara chunks. Other chunks are copied
// unchanged.
func StripChara(buf []byte) ([]byte, error) {
	chunks, err := walk("write", buf, nil)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(buf))
	out = append(out, buf[:len(Signature)]...)
	last := len(Signature)
	for _, c := range chunks {
		last = c.Offset + c.Size()
		if keyword, _, ok := c.Text(); ok && keyword == CharaKeyword {
			continue
		}
		out = append(out, buf[c.Offset:last]...)
	}
	return append(out, buf[last:]...), nil
}
