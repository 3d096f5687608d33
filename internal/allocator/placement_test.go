package allocator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efmalloc/galloc/internal/heapprovider"
	"github.com/efmalloc/galloc/internal/layout"
)

func newTestAllocator(t *testing.T, opts ...Option) (*Allocator, heapprovider.Provider) {
	t.Helper()
	p := heapprovider.NewMemProvider()
	a, err := New(context.Background(), p, opts...)
	require.NoError(t, err)
	return a, p
}

// takeInitialBlock allocates the 8-byte free block that New leaves at offset
// 16, so the next block placed by heap extension has an allocated physical
// predecessor and cannot coalesce backwards into it.
func takeInitialBlock(t *testing.T, a *Allocator) {
	t.Helper()
	ptr, err := a.Allocate(context.Background(), 8)
	require.NoError(t, err)
	require.EqualValues(t, 16, ptr)
}

func TestAllocate_InitialHeapLayout(t *testing.T) {
	a, p := newTestAllocator(t)
	assert.EqualValues(t, layout.InitialHeapBytes, p.Size())
	assert.Equal(t, uint32(16), a.list.Head())
	assert.False(t, a.list.Empty())
}

func TestAllocate_ZeroByteRequestConsumesInitialBlock(t *testing.T) {
	a, _ := newTestAllocator(t)
	// Initial free block has payload 8, effective allocatable size 12; a
	// request for 0 bytes requires 12 — it exactly fits, consume-whole
	// since slack would be 0.
	ptr, err := a.Allocate(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(16), ptr)
	assert.True(t, a.list.Empty())
}

func TestAllocate_ConsumeWholeWhenSlackBelowThreshold(t *testing.T) {
	a, _ := newTestAllocator(t)
	ptr, err := a.Allocate(context.Background(), 8)
	require.NoError(t, err)
	assert.Equal(t, uint32(16), ptr)

	size, prevAlloc, selfAlloc, ok := a.enc.Header(ptr)
	require.True(t, ok)
	assert.True(t, selfAlloc)
	assert.True(t, prevAlloc)
	// Consume-whole reclaims the free block's footer word, so the allocated
	// block's size is the full required size, not the free block's interior
	// payload size.
	assert.EqualValues(t, layout.RequiredBlockSize(8), size)
	assert.True(t, a.list.Empty())
}

func TestAllocate_ExtendsHeapWhenNoFit(t *testing.T) {
	a, p := newTestAllocator(t)
	before := p.Size()
	ptr, err := a.Allocate(context.Background(), 64)
	require.NoError(t, err)
	assert.Greater(t, p.Size(), before)

	size, _, selfAlloc, ok := a.enc.Header(ptr)
	require.True(t, ok)
	assert.True(t, selfAlloc)
	assert.GreaterOrEqual(t, size, uint32(64))
}

func TestAllocate_SplitsWhenSlackAtOrAboveThreshold(t *testing.T) {
	a, _ := newTestAllocator(t)
	// Grow a large free block by allocating then freeing a big chunk so the
	// free list holds a block with ample slack for a small request.
	big, err := a.Allocate(context.Background(), 200)
	require.NoError(t, err)
	require.NoError(t, a.Free(big))

	ptr, err := a.Allocate(context.Background(), 8)
	require.NoError(t, err)

	size, _, selfAlloc, ok := a.enc.Header(ptr)
	require.True(t, ok)
	assert.True(t, selfAlloc)
	assert.EqualValues(t, layout.RequiredBlockSize(8), size)
	assert.False(t, a.list.Empty(), "split should have left a remainder free block")
}

func TestAllocate_SequentialAllocationsDoNotOverlap(t *testing.T) {
	a, _ := newTestAllocator(t)
	ptrs := make([]uint32, 0, 8)
	for i := 0; i < 8; i++ {
		ptr, err := a.Allocate(context.Background(), uint32(8*(i+1)))
		require.NoError(t, err)
		ptrs = append(ptrs, ptr)
	}
	seen := map[uint32]bool{}
	for _, p := range ptrs {
		assert.False(t, seen[p], "duplicate payload offset %d", p)
		seen[p] = true
	}
}

func TestAllocate_FirstFitReusesFreedRegion(t *testing.T) {
	a, _ := newTestAllocator(t)
	takeInitialBlock(t, a)
	p1, err := a.Allocate(context.Background(), 100)
	require.NoError(t, err)
	require.NoError(t, a.Free(p1))

	p2, err := a.Allocate(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

func TestAllocate_FitNumberSelectsSmallestOfKCandidates(t *testing.T) {
	a, _ := newTestAllocator(t, WithFitNumber(3))
	takeInitialBlock(t, a)

	a1, err := a.Allocate(context.Background(), 200) // large
	require.NoError(t, err)
	sep, err := a.Allocate(context.Background(), 8) // keeps a1 and a2 from coalescing
	require.NoError(t, err)
	a2, err := a.Allocate(context.Background(), 40) // medium
	require.NoError(t, err)
	a3, err := a.Allocate(context.Background(), 8) // small tail anchor
	require.NoError(t, err)

	// Free inserts at the list head, so freeing a2 first leaves a1 ahead of it.
	require.NoError(t, a.Free(a2))
	require.NoError(t, a.Free(a1))

	// Now the free list holds a large block then a medium block;
	// a request that fits both should land in the smaller (medium) one.
	ptr, err := a.Allocate(context.Background(), 32)
	require.NoError(t, err)
	assert.Equal(t, a2, ptr)
	_ = a3
	_ = sep
}
