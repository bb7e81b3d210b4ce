package audio

import (
	"errors"
	"fmt"
)

// Sample is a single audio sample.
type Sample = float32

// ChunkSize is the number of samples that are carried by one frame.
// It must be identical on the client and the relay.
const ChunkSize = 128

// FillSample is used to pad a chunk when fewer samples are available.
const FillSample Sample = 0

// Chunk is a fixed-length sequence of samples, the unit of audio per frame.
type Chunk [ChunkSize]Sample

var ErrChunkSize = errors.New("samples do not fit the chunk shape")

// ChunkFrom copies exactly ChunkSize samples into a new Chunk.
func ChunkFrom(samples []Sample) (chunk Chunk, err error) {
	if len(samples) != ChunkSize {
		err = fmt.Errorf("%w: got %v samples, want %v", ErrChunkSize, len(samples), ChunkSize)
		return
	}
	copy(chunk[:], samples)
	return
}

// Slot holds at most one chunk. A newer chunk replaces an older one
// that has not been taken yet.
type Slot struct {
	chunk Chunk
	full  bool
}

// Put overwrites the slot with the given chunk.
func (s *Slot) Put(chunk Chunk) {
	s.chunk = chunk
	s.full = true
}

// Take returns the chunk in the slot and empties it.
func (s *Slot) Take() (chunk Chunk, ok bool) {
	if !s.full {
		return
	}
	chunk, ok = s.chunk, true
	s.chunk = Chunk{}
	s.full = false
	return
}

// Full reports whether the slot holds a chunk.
func (s *Slot) Full() bool {
	return s.full
}
