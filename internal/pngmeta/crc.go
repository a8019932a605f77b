package pngmeta

// crcTable is the reflected CRC-32 table for the PNG/zlib polynomial.
var crcTable = makeCRCTable()

func makeCRCTable() (t [256]uint32) {
	for n := range t {
		c := uint32(n)
		for k := 0; k < 8; k++ {
			if c&1 == 1 {
				c = 0xedb88320 ^ (c >> 1)
			} else {
				c >>= 1
			}
		}
		t[n] = c
	}
	return t
}

func updateCRC(crc uint32, buf []byte) uint32 {
	for _, b := range buf {
		crc = crcTable[byte(crc)^b] ^ (crc >> 8)
	}
	return crc
}

// ChunkCRC returns the CRC a PNG chunk stores: CRC-32 over the chunk type
// followed by its data.
func ChunkCRC(typ string, data []byte) uint32 {
	c := updateCRC(0xffffffff, []byte(typ))
	return updateCRC(c, data) ^ 0xffffffff
}
