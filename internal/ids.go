package internal

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator hands out fresh identifiers. Imports never reuse identifiers
// from the source file; every id in an imported story comes from here.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator generates random (v4) UUIDs.
type UUIDGenerator struct{}

// NewID returns a new random UUID string
func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// SequenceGenerator generates predictable ids ("<prefix>-1", "<prefix>-2", ...).
// Safe for concurrent use.
type SequenceGenerator struct {
	Prefix string
	n      atomic.Int64
}

// NewID returns the next id in the sequence
func (g *SequenceGenerator) NewID() string {
	prefix := g.Prefix
	if prefix == "" {
		prefix = "id"
	}
	return fmt.Sprintf("%s-%d", prefix, g.n.Add(1))
}
