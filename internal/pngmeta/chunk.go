// Package pngmeta reads and writes the textual metadata chunks of PNG files,
// in particular the "chara" chunk that carries an embedded character card.
package pngmeta

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/iksnae/ellipsis-codec/internal"
)

// Signature is the fixed 8-byte header of every PNG datastream.
const Signature = "\x89PNG\r\n\x1a\n"

// Chunk types handled by this package.
const (
	TypeText  = "tEXt"
	TypeZText = "zTXt"
	TypeEnd   = "IEND"
)

// CharaKeyword is the text chunk keyword reserved for character card data.
const CharaKeyword = "chara"

// chunkOverhead is length + type + CRC.
const chunkOverhead = 12

// Chunk is one chunk record of a PNG datastream.
type Chunk struct {
	Offset int // position of the length field in the buffer
	Type   string
	Data   []byte // aliases the source buffer
	CRC    uint32 // stored checksum
}

// Size is the number of bytes the chunk occupies, overhead included.
func (c Chunk) Size() int {
	return chunkOverhead + len(c.Data)
}

// Valid reports whether the stored CRC matches the chunk contents.
func (c Chunk) Valid() bool {
	return ChunkCRC(c.Type, c.Data) == c.CRC
}

// Text splits a tEXt or zTXt chunk into its keyword and the bytes after the
// keyword's NUL terminator.
func (c Chunk) Text() (keyword string, rest []byte, ok bool) {
	if c.Type != TypeText && c.Type != TypeZText {
		return "", nil, false
	}
	i := bytes.IndexByte(c.Data, 0)
	if i < 0 {
		return "", nil, false
	}
	return string(c.Data[:i]), c.Data[i+1:], true
}

func checkSignature(op string, buf []byte) error {
	if len(buf) < len(Signature) || string(buf[:len(Signature)]) != Signature {
		return internal.NewFormatError(op, "invalid PNG signature")
	}
	return nil
}

// Chunks walks buf and returns its chunks up to and including IEND. A buffer
// that ends without IEND yields the chunks found so far; a chunk whose
// declared length runs past the buffer is a FormatError.
func Chunks(buf []byte) ([]Chunk, error) {
	return walk("read", buf, nil)
}

// walk visits chunks in order. visit returning false stops the walk early.
func walk(op string, buf []byte, visit func(Chunk) bool) ([]Chunk, error) {
	if err := checkSignature(op, buf); err != nil {
		return nil, err
	}

	var chunks []Chunk
	offset := len(Signature)
	for offset < len(buf) {
		if len(buf)-offset < chunkOverhead {
			return nil, internal.NewFormatError(op, fmt.Sprintf("truncated chunk header at offset %d", offset))
		}
		length := binary.BigEndian.Uint32(buf[offset : offset+4])
		if uint64(length) > uint64(len(buf)-offset-chunkOverhead) {
			return nil, internal.NewFormatError(op, fmt.Sprintf("chunk at offset %d declares %d bytes past end of data", offset, length))
		}
		dataStart := offset + 8
		dataEnd := dataStart + int(length)
		c := Chunk{
			Offset: offset,
			Type:   string(buf[offset+4 : dataStart]),
			Data:   buf[dataStart:dataEnd:dataEnd],
			CRC:    binary.BigEndian.Uint32(buf[dataEnd : dataEnd+4]),
		}
		chunks = append(chunks, c)
		if visit != nil && !visit(c) {
			break
		}
		if c.Type == TypeEnd {
			break
		}
		offset = dataEnd + 4
	}
	return chunks, nil
}

// EncodeChunk serializes a chunk record: length, type, data and CRC.
func EncodeChunk(typ string, data []byte) []byte {
	out := make([]byte, 0, chunkOverhead+len(data))
	out = binary.BigEndian.AppendUint32(out, uint32(len(data)))
	out = append(out, typ...)
	out = append(out, data...)
	return binary.BigEndian.AppendUint32(out, ChunkCRC(typ, data))
}
