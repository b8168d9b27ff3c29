// ABOUTME: Tests for fixed-size PCM chunk framing
// ABOUTME: Exact boundaries, remainder carry, and trailing-partial retention

package voice

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplesRange(start, n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(start + i)
	}
	return out
}

func decodePCM(t *testing.T, data []byte) []int16 {
	t.Helper()
	require.Zero(t, len(data)%2)
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}

func TestChunker_ExactChunkSizes(t *testing.T) {
	c := NewChunker(4)

	chunks := c.Write(samplesRange(0, 8))
	require.Len(t, chunks, 2)
	assert.Equal(t, []int16{0, 1, 2, 3}, decodePCM(t, chunks[0]))
	assert.Equal(t, []int16{4, 5, 6, 7}, decodePCM(t, chunks[1]))
	assert.Zero(t, c.PendingSamples())
}

func TestChunker_RemainderCarriesAcrossWrites(t *testing.T) {
	c := NewChunker(4)

	chunks := c.Write(samplesRange(0, 6))
	require.Len(t, chunks, 1)
	assert.Equal(t, []int16{0, 1, 2, 3}, decodePCM(t, chunks[0]))
	assert.Equal(t, 2, c.PendingSamples())

	chunks = c.Write(samplesRange(6, 3))
	require.Len(t, chunks, 1)
	assert.Equal(t, []int16{4, 5, 6, 7}, decodePCM(t, chunks[0]), "no gap, no overlap across the boundary")
	assert.Equal(t, 1, c.PendingSamples())
}

func TestChunker_SmallWritesAccumulate(t *testing.T) {
	c := NewChunker(4)

	assert.Empty(t, c.Write(samplesRange(0, 1)))
	assert.Empty(t, c.Write(samplesRange(1, 2)))
	chunks := c.Write(samplesRange(3, 1))
	require.Len(t, chunks, 1)
	assert.Equal(t, []int16{0, 1, 2, 3}, decodePCM(t, chunks[0]))
}

func TestChunker_TrailingPartialNeverFlushed(t *testing.T) {
	c := NewChunker(4)

	chunks := c.Write(samplesRange(0, 7))
	require.Len(t, chunks, 1)
	assert.Equal(t, 3, c.PendingSamples(), "the partial chunk is held, not emitted")

	c.Reset()
	assert.Zero(t, c.PendingSamples())

	// After reset the next write starts a fresh chunk.
	chunks = c.Write(samplesRange(100, 4))
	require.Len(t, chunks, 1)
	assert.Equal(t, []int16{100, 101, 102, 103}, decodePCM(t, chunks[0]))
}

func TestChunker_NegativeSamplesRoundTrip(t *testing.T) {
	c := NewChunker(2)

	chunks := c.Write([]int16{-32768, 32767})
	require.Len(t, chunks, 1)
	assert.Equal(t, []int16{-32768, 32767}, decodePCM(t, chunks[0]))
}
