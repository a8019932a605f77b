package internal

import (
	"crypto/sha256"
	"encoding/hex"
)

// Deduplicator recognizes import inputs whose content was already seen,
// whatever their file name.
type Deduplicator struct {
	seen map[string]string
}

// NewDeduplicator creates a new Deduplicator
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]string)}
}

// Check records data under name. For content seen before it returns the
// name it was first recorded under and true.
func (d *Deduplicator) Check(name string, data []byte) (first string, duplicate bool) {
	hash := hashContent(data)
	if first, ok := d.seen[hash]; ok {
		return first, true
	}
	d.seen[hash] = name
	return name, false
}

// hashContent creates a content-based hash for an input file
func hashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
