// Package layout implements the offset-arithmetic and block-encoding layers
// of the allocator: translating between heap-relative offsets and aligned
// block boundaries, and packing/unpacking the header and footer words
// described in block.go. All bookkeeping here is position-independent —
// nothing in this package holds a machine pointer, only uint32 offsets — so
// it stays valid across a heap provider's Extend.
package layout

const (
	// Alignment is the allocator-wide byte alignment for block payloads.
	Alignment = 8

	// WordSize is the size of a header/footer/link word.
	WordSize = 4

	// HeadSentinel and TailSentinel are the heap-relative offsets of the
	// free list's sentinel slots, doubling as list-end markers in prev/next
	// links.
	HeadSentinel uint32 = 0
	TailSentinel uint32 = 4

	// SentinelAreaSize is the size of the HEAD/TAIL sentinel area at the
	// start of the heap.
	SentinelAreaSize uint32 = 8

	// MinBlockSize is the smallest content size of an allocated block. Freeing
	// such a block gives up one word to the footer, leaving 8 bytes: exactly
	// a free block's prev+next links with no interior padding.
	MinBlockSize uint32 = 12

	// InitialHeapBytes is the number of bytes requested from the heap
	// provider during allocator initialization.
	InitialHeapBytes uint32 = 32

	// InitialFreeBlockSize is the interior content size of the single free
	// block created during initialization.
	InitialFreeBlockSize uint32 = 8

	// MaxOffset is the largest representable heap-relative offset; the heap
	// must never grow past this.
	MaxOffset uint32 = ^uint32(0)
)

// Align8 rounds n up to the next multiple of 8.
func Align8(n uint32) uint32 {
	return (n + Alignment - 1) &^ (Alignment - 1)
}

// RequiredBlockSize computes the interior content size a block must have to
// satisfy an allocate(n) request: the
// caller's payload overlaps the would-be footer slot of an allocated block,
// so one word is recovered before rounding and handed back afterwards, and
// the physical minimum is MinBlockSize.
//
// n is a uint32, but the alignment arithmetic is done in uint64 to avoid a
// false "fits" result from wraparound when n sits near the uint32 ceiling;
// callers that need to reject a request before it's even truncated back to
// uint32 should use RequiredBlockSize64 directly.
func RequiredBlockSize(n uint32) uint32 {
	return uint32(RequiredBlockSize64(uint64(n)))
}

// RequiredBlockSize64 is RequiredBlockSize's overflow-safe core.
func RequiredBlockSize64(n uint64) uint64 {
	want := n
	if want < WordSize {
		want = WordSize
	}
	req := align8_64(want-WordSize) + WordSize
	if req < uint64(MinBlockSize) {
		req = uint64(MinBlockSize)
	}
	return req
}

func align8_64(n uint64) uint64 {
	return (n + Alignment - 1) &^ (Alignment - 1)
}
