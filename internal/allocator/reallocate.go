package allocator

import (
	"context"

	"github.com/efmalloc/galloc/internal/layout"
)

// Reallocate resizes the block at ptr to size bytes. A null
// ptr behaves as Allocate; size == 0 behaves as Free and returns 0. No
// in-place grow/shrink optimization — every resize copies into a fresh
// block.
func (a *Allocator) Reallocate(ctx context.Context, ptr, size uint32) (uint32, error) {
	if ptr == 0 {
		return a.Allocate(ctx, size)
	}
	if size == 0 {
		if err := a.Free(ptr); err != nil {
			return 0, err
		}
		return 0, nil
	}

	oldSize, _, selfAlloc, ok := a.enc.Header(ptr)
	if !ok || !selfAlloc {
		return 0, nil
	}

	newPtr, err := a.Allocate(ctx, size)
	if err != nil {
		return 0, err
	}

	if err := a.copyPayload(ptr, newPtr, oldSize, size); err != nil {
		return 0, err
	}

	if err := a.Free(ptr); err != nil {
		return 0, err
	}

	a.stats.ReallocCount++
	return newPtr, nil
}

// ZeroedAllocate allocates nmemb*size bytes and zeroes the entire placed
// payload region, which may exceed nmemb*size due to alignment/placement
// slack.
func (a *Allocator) ZeroedAllocate(ctx context.Context, nmemb, size uint32) (uint32, error) {
	total := nmemb * size
	ptr, err := a.Allocate(ctx, total)
	if err != nil {
		return 0, err
	}

	placedSize, _, _, ok := a.enc.Header(ptr)
	if ok {
		a.zeroRange(ptr, placedSize)
	}

	a.stats.ZeroedAllocs++
	return ptr, nil
}

// copyPayload copies min(oldSize, newSize) bytes word by word from the old
// block to the new one, where oldSize is the old block's payload size and
// newSize is the requested byte count.
func (a *Allocator) copyPayload(oldPtr, newPtr, oldSize, newSize uint32) error {
	n := oldSize
	if newSize < n {
		n = newSize
	}
	words := n / layout.WordSize
	for i := uint32(0); i < words; i++ {
		off := i * layout.WordSize
		v, ok := a.provider.ReadUint32(oldPtr + off)
		if !ok {
			break
		}
		a.provider.WriteUint32(newPtr+off, v)
	}
	tailStart := words * layout.WordSize
	if tailStart < n {
		if b, ok := a.provider.ReadBytes(oldPtr+tailStart, n-tailStart); ok {
			a.provider.WriteBytes(newPtr+tailStart, b)
		}
	}
	return nil
}

// zeroRange writes n zero bytes starting at off.
func (a *Allocator) zeroRange(off, n uint32) {
	zeros := make([]byte, n)
	a.provider.WriteBytes(off, zeros)
}
