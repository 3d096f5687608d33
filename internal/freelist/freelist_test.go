package freelist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efmalloc/galloc/internal/heapprovider"
	"github.com/efmalloc/galloc/internal/layout"
)

func newList(t *testing.T, bytes uint32) *List {
	t.Helper()
	p := heapprovider.NewMemProvider()
	_, err := p.Extend(context.Background(), bytes)
	require.NoError(t, err)
	enc := layout.NewEncoder(p)
	l := New(enc)
	// New does not write the sentinel words; start from the empty list.
	l.setHead(layout.TailSentinel)
	l.setTail(layout.HeadSentinel)
	return l
}

func TestList_EmptyByDefault(t *testing.T) {
	l := newList(t, 64)
	assert.True(t, l.Empty())
	assert.Equal(t, layout.TailSentinel, l.Head())
	assert.Equal(t, layout.HeadSentinel, l.Tail())
}

func TestList_InsertHeadSingle(t *testing.T) {
	l := newList(t, 64)
	l.enc.WriteFree(16, 12, true, 0, 0)
	l.InsertHead(16)

	assert.False(t, l.Empty())
	assert.Equal(t, uint32(16), l.Head())
	assert.Equal(t, uint32(16), l.Tail())

	prev, _ := l.enc.PrevLink(16)
	next, _ := l.enc.NextLink(16)
	assert.Equal(t, layout.HeadSentinel, prev)
	assert.Equal(t, layout.TailSentinel, next)
}

func TestList_InsertHeadMultiple(t *testing.T) {
	l := newList(t, 128)
	l.enc.WriteFree(16, 12, true, 0, 0)
	l.InsertHead(16)
	l.enc.WriteFree(40, 12, true, 0, 0)
	l.InsertHead(40)

	assert.Equal(t, uint32(40), l.Head())
	assert.Equal(t, uint32(16), l.Tail())

	next, _ := l.enc.NextLink(40)
	assert.Equal(t, uint32(16), next)
	prev, _ := l.enc.PrevLink(16)
	assert.Equal(t, uint32(40), prev)
}

func TestList_RemoveHead(t *testing.T) {
	l := newList(t, 128)
	l.enc.WriteFree(16, 12, true, 0, 0)
	l.InsertHead(16)
	l.enc.WriteFree(40, 12, true, 0, 0)
	l.InsertHead(40)

	l.Remove(40)
	assert.Equal(t, uint32(16), l.Head())
	assert.Equal(t, uint32(16), l.Tail())
	prev, _ := l.enc.PrevLink(16)
	assert.Equal(t, layout.HeadSentinel, prev)
}

func TestList_RemoveTail(t *testing.T) {
	l := newList(t, 128)
	l.enc.WriteFree(16, 12, true, 0, 0)
	l.InsertHead(16)
	l.enc.WriteFree(40, 12, true, 0, 0)
	l.InsertHead(40)

	l.Remove(16)
	assert.Equal(t, uint32(40), l.Head())
	assert.Equal(t, uint32(40), l.Tail())
	next, _ := l.enc.NextLink(40)
	assert.Equal(t, layout.TailSentinel, next)
}

func TestList_RemoveOnlyEntry(t *testing.T) {
	l := newList(t, 64)
	l.enc.WriteFree(16, 12, true, 0, 0)
	l.InsertHead(16)
	l.Remove(16)
	assert.True(t, l.Empty())
}

func TestList_Walk(t *testing.T) {
	l := newList(t, 128)
	l.enc.WriteFree(16, 12, true, 0, 0)
	l.InsertHead(16)
	l.enc.WriteFree(40, 12, true, 0, 0)
	l.InsertHead(40)

	var seen []uint32
	l.Walk(func(p uint32) bool {
		seen = append(seen, p)
		return true
	})
	assert.Equal(t, []uint32{40, 16}, seen)
}
