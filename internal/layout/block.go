package layout

import "github.com/efmalloc/galloc/internal/heapprovider"

// Header/footer bit layout: a 32-bit word packed as
//
//	(size &^ 0x3) | (prevAlloc << 1) | selfAlloc
//
// size is the block's interior content length: the span strictly between
// the header and (for free blocks) the footer. It excludes both the header
// itself and, for free blocks, the footer — an allocated block has no
// footer, so its declared size runs all the way to the next block's header.
const (
	selfAllocBit = 0x1
	prevAllocBit = 0x2
	sizeMask     = ^uint32(0x3)
)

// PackHeader packs a header word.
func PackHeader(size uint32, prevAlloc, selfAlloc bool) uint32 {
	w := size & sizeMask
	if prevAlloc {
		w |= prevAllocBit
	}
	if selfAlloc {
		w |= selfAllocBit
	}
	return w
}

// PackFooter packs a footer word. Footers only ever describe free blocks,
// but selfAlloc is taken as a parameter (rather than hardcoded false) so the
// checker can compare it against the header's bit without special-casing.
func PackFooter(size uint32, selfAlloc bool) uint32 {
	w := size & sizeMask
	if selfAlloc {
		w |= selfAllocBit
	}
	return w
}

// SizeOf extracts the size field from a packed header or footer word.
func SizeOf(word uint32) uint32 { return word & sizeMask }

// PrevAllocOf extracts the predecessor-alloc bit from a header word.
func PrevAllocOf(word uint32) bool { return word&prevAllocBit != 0 }

// SelfAllocOf extracts the self-alloc bit from a header or footer word.
func SelfAllocOf(word uint32) bool { return word&selfAllocBit != 0 }

// Encoder reads and writes block headers/footers/links through a heap
// Provider. It knows nothing about the free list or placement policy; it is
// the pure byte-layout layer.
type Encoder struct {
	P heapprovider.Provider
}

// NewEncoder wraps a Provider in an Encoder.
func NewEncoder(p heapprovider.Provider) *Encoder {
	return &Encoder{P: p}
}

// HeaderOffset returns the offset of the header word preceding a block's
// payload.
func HeaderOffset(payloadOff uint32) uint32 { return payloadOff - WordSize }

// FooterOffset returns the offset of a free block's footer word, given its
// payload offset and interior size.
func FooterOffset(payloadOff, size uint32) uint32 { return payloadOff + size }

// Header reads and unpacks the header word for the block at payloadOff.
func (e *Encoder) Header(payloadOff uint32) (size uint32, prevAlloc, selfAlloc bool, ok bool) {
	word, ok := e.P.ReadUint32(HeaderOffset(payloadOff))
	if !ok {
		return 0, false, false, false
	}
	return SizeOf(word), PrevAllocOf(word), SelfAllocOf(word), true
}

// Footer reads and unpacks the footer word of the free block at payloadOff
// with the given interior size.
func (e *Encoder) Footer(payloadOff, size uint32) (footerSize uint32, selfAlloc bool, ok bool) {
	word, ok := e.P.ReadUint32(FooterOffset(payloadOff, size))
	if !ok {
		return 0, false, false
	}
	return SizeOf(word), SelfAllocOf(word), true
}

// WriteAllocated writes the header of an allocated block. Allocated blocks
// never carry a footer: the predecessor-alloc bit on the
// physically following block is what lets that block omit one.
func (e *Encoder) WriteAllocated(payloadOff, size uint32, prevAlloc bool) bool {
	return e.P.WriteUint32(HeaderOffset(payloadOff), PackHeader(size, prevAlloc, true))
}

// WriteFree writes the header, footer, and links of a free block.
func (e *Encoder) WriteFree(payloadOff, size uint32, prevAlloc bool, prevLink, nextLink uint32) bool {
	ok := e.P.WriteUint32(HeaderOffset(payloadOff), PackHeader(size, prevAlloc, false))
	ok = ok && e.P.WriteUint32(FooterOffset(payloadOff, size), PackFooter(size, false))
	ok = ok && e.SetPrevLink(payloadOff, prevLink)
	ok = ok && e.SetNextLink(payloadOff, nextLink)
	return ok
}

// UpdatePrevAlloc rewrites only the predecessor-alloc bit of the header at
// payloadOff, returning the bit's previous value.
func (e *Encoder) UpdatePrevAlloc(payloadOff uint32, newBit bool) (oldBit bool, ok bool) {
	word, ok := e.P.ReadUint32(HeaderOffset(payloadOff))
	if !ok {
		return false, false
	}
	size := SizeOf(word)
	self := SelfAllocOf(word)
	old := PrevAllocOf(word)
	if !e.P.WriteUint32(HeaderOffset(payloadOff), PackHeader(size, newBit, self)) {
		return false, false
	}
	return old, true
}

// PrevLink and NextLink read a free block's list links.
func (e *Encoder) PrevLink(payloadOff uint32) (uint32, bool) { return e.P.ReadUint32(payloadOff) }
func (e *Encoder) NextLink(payloadOff uint32) (uint32, bool) {
	return e.P.ReadUint32(payloadOff + WordSize)
}

// SetPrevLink and SetNextLink write a free block's list links.
func (e *Encoder) SetPrevLink(payloadOff, link uint32) bool { return e.P.WriteUint32(payloadOff, link) }
func (e *Encoder) SetNextLink(payloadOff, link uint32) bool {
	return e.P.WriteUint32(payloadOff+WordSize, link)
}

// NextPhysicalPayload returns the payload offset of the block physically
// following the one at payloadOff, given its size and self-alloc bit: an
// allocated block's content runs straight into the next header (no
// footer), a free block's footer costs one more word.
func NextPhysicalPayload(payloadOff, size uint32, selfAlloc bool) uint32 {
	if selfAlloc {
		return payloadOff + size + WordSize
	}
	return payloadOff + size + 2*WordSize
}

// PrevFreePayload returns the payload offset of the physically preceding
// block, valid ONLY when that block is free (its footer must be readable
// immediately before this block's header).
func (e *Encoder) PrevFreePayload(payloadOff uint32) (prevPayload uint32, ok bool) {
	footerWord, ok := e.P.ReadUint32(payloadOff - 2*WordSize)
	if !ok {
		return 0, false
	}
	prevSize := SizeOf(footerWord)
	return payloadOff - 2*WordSize - prevSize, true
}
