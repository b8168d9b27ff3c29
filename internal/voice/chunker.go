// ABOUTME: Fixed-size PCM chunk framing for outbound audio
// ABOUTME: Carries remainders across writes; samples are never dropped or duplicated

package voice

import "encoding/binary"

// Chunker accumulates raw samples and cuts them into fixed-size chunks of
// 16-bit little-endian PCM. A trailing partial chunk is held, never
// force-flushed: the wire contract is exact chunk sizes only.
type Chunker struct {
	chunkSamples int
	pending      []int16
}

// NewChunker creates a Chunker emitting chunks of chunkSamples samples.
// The chunk size is a small multiple of the backend's VAD frame size.
func NewChunker(chunkSamples int) *Chunker {
	return &Chunker{chunkSamples: chunkSamples}
}

// Write appends samples and returns zero or more complete encoded chunks.
// Chunk boundaries are exact: no gap, no overlap, remainder carried to
// the next Write.
func (c *Chunker) Write(samples []int16) [][]byte {
	c.pending = append(c.pending, samples...)

	var chunks [][]byte
	for len(c.pending) >= c.chunkSamples {
		chunks = append(chunks, encodePCM(c.pending[:c.chunkSamples]))
		c.pending = c.pending[c.chunkSamples:]
	}
	return chunks
}

// PendingSamples reports how many samples are held for the next chunk.
func (c *Chunker) PendingSamples() int {
	return len(c.pending)
}

// Reset discards any held remainder, used when capture stops.
func (c *Chunker) Reset() {
	c.pending = nil
}

func encodePCM(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
