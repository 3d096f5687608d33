package layout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efmalloc/galloc/internal/heapprovider"
)

func TestAlign8(t *testing.T) {
	cases := map[uint32]uint32{0: 0, 1: 8, 7: 8, 8: 8, 9: 16, 16: 16, 17: 24}
	for in, want := range cases {
		assert.Equal(t, want, Align8(in), "Align8(%d)", in)
	}
}

func TestRequiredBlockSize(t *testing.T) {
	cases := map[uint32]uint32{
		0:   MinBlockSize,
		4:   MinBlockSize,
		8:   12,
		16:  20,
		20:  20,
		100: 100,
	}
	for n, want := range cases {
		assert.Equal(t, want, RequiredBlockSize(n), "RequiredBlockSize(%d)", n)
	}
}

func TestPackUnpackHeader(t *testing.T) {
	word := PackHeader(24, true, false)
	assert.EqualValues(t, 24, SizeOf(word))
	assert.True(t, PrevAllocOf(word))
	assert.False(t, SelfAllocOf(word))

	word2 := PackHeader(16, false, true)
	assert.EqualValues(t, 16, SizeOf(word2))
	assert.False(t, PrevAllocOf(word2))
	assert.True(t, SelfAllocOf(word2))
}

func newEncoder(t *testing.T, bytes uint32) (*Encoder, heapprovider.Provider) {
	t.Helper()
	p := heapprovider.NewMemProvider()
	_, err := p.Extend(context.Background(), bytes)
	require.NoError(t, err)
	return NewEncoder(p), p
}

func TestEncoder_WriteReadAllocated(t *testing.T) {
	e, _ := newEncoder(t, 64)
	require.True(t, e.WriteAllocated(16, 20, true))

	size, prevAlloc, selfAlloc, ok := e.Header(16)
	require.True(t, ok)
	assert.EqualValues(t, 20, size)
	assert.True(t, prevAlloc)
	assert.True(t, selfAlloc)
}

func TestEncoder_WriteReadFree(t *testing.T) {
	e, _ := newEncoder(t, 64)
	require.True(t, e.WriteFree(16, 12, true, HeadSentinel, TailSentinel))

	size, prevAlloc, selfAlloc, ok := e.Header(16)
	require.True(t, ok)
	assert.EqualValues(t, 12, size)
	assert.True(t, prevAlloc)
	assert.False(t, selfAlloc)

	footerSize, footerSelfAlloc, ok := e.Footer(16, 12)
	require.True(t, ok)
	assert.EqualValues(t, 12, footerSize)
	assert.False(t, footerSelfAlloc)

	prev, ok := e.PrevLink(16)
	require.True(t, ok)
	assert.Equal(t, HeadSentinel, prev)

	next, ok := e.NextLink(16)
	require.True(t, ok)
	assert.Equal(t, TailSentinel, next)
}

func TestEncoder_UpdatePrevAlloc(t *testing.T) {
	e, _ := newEncoder(t, 64)
	require.True(t, e.WriteAllocated(16, 20, true))

	old, ok := e.UpdatePrevAlloc(16, false)
	require.True(t, ok)
	assert.True(t, old)

	_, prevAlloc, selfAlloc, ok := e.Header(16)
	require.True(t, ok)
	assert.False(t, prevAlloc)
	assert.True(t, selfAlloc)
}

func TestNextPhysicalPayload(t *testing.T) {
	// allocated: no footer, skip content + one header word
	assert.Equal(t, uint32(16+20+4), NextPhysicalPayload(16, 20, true))
	// free: footer + header word
	assert.Equal(t, uint32(16+12+8), NextPhysicalPayload(16, 12, false))
}

func TestEncoder_PrevFreePayload(t *testing.T) {
	e, _ := newEncoder(t, 64)
	// free block at 16 with interior size 12: spans header@12 .. footer@(16+12)=28
	require.True(t, e.WriteFree(16, 12, true, HeadSentinel, TailSentinel))

	// next block's payload: header immediately after footer+its own header,
	// i.e. at 16+12+8 = 36
	nextPayload := NextPhysicalPayload(16, 12, false)
	require.EqualValues(t, 36, nextPayload)

	prevPayload, ok := e.PrevFreePayload(nextPayload)
	require.True(t, ok)
	assert.EqualValues(t, 16, prevPayload)
}
