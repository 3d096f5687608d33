package allocator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckHeap_CleanHeapHasNoDiagnostics(t *testing.T) {
	a, _ := newTestAllocator(t)
	p1, err := a.Allocate(context.Background(), 40)
	require.NoError(t, err)
	p2, err := a.Allocate(context.Background(), 60)
	require.NoError(t, err)
	require.NoError(t, a.Free(p1))

	diags := a.CheckHeap(false)
	assert.Empty(t, diags)
	_ = p2
}

func TestCheckHeap_DetectsCorruptedFreeEntry(t *testing.T) {
	a, _ := newTestAllocator(t)
	takeInitialBlock(t, a)
	p1, err := a.Allocate(context.Background(), 40)
	require.NoError(t, err)
	require.NoError(t, a.Free(p1))

	a.enc.WriteAllocated(p1, 0, true) // corrupt: list still points here, header now says busy

	diags := a.CheckHeap(false)
	assert.NotEmpty(t, diags)
}

func TestCheckHeap_VerboseDoesNotPanic(t *testing.T) {
	a, _ := newTestAllocator(t, WithDebugLog(true))
	_, err := a.Allocate(context.Background(), 40)
	require.NoError(t, err)
	assert.NotPanics(t, func() { a.CheckHeap(true) })
}
