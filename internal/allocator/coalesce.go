package allocator

import (
	allocerrors "github.com/efmalloc/galloc/internal/errors"
	"github.com/efmalloc/galloc/internal/layout"
)

// Free returns the block at ptr to the free list, coalescing with
// physically adjacent free neighbors. An out-of-range
// pointer is ignored silently; a double free is logged and ignored.
func (a *Allocator) Free(ptr uint32) error {
	sizeB, prevAlloc, selfAlloc, ok := a.enc.Header(ptr)
	if !ok {
		return nil
	}
	if !selfAlloc {
		a.stats.DoubleFrees++
		a.debugf("doublefree", "%s: offset %d already free", allocerrors.CodeDoubleFree, ptr)
		return nil
	}

	next := layout.NextPhysicalPayload(ptr, sizeB, true)
	nextSize, _, nextAlloc, nextOk := a.enc.Header(next)
	if !nextOk {
		return allocerrors.New(allocerrors.CodeMetadataInconsistency, "could not read following block's header")
	}

	var newPayload uint32
	switch {
	case prevAlloc && nextAlloc:
		newPayload = a.freeBusyBusy(ptr, sizeB, next)
	case prevAlloc && !nextAlloc:
		newPayload = a.freeBusyFree(ptr, sizeB, next, nextSize)
	case !prevAlloc && nextAlloc:
		newPayload = a.freeFreeBusy(ptr, sizeB, next)
	default:
		newPayload = a.freeFreeFree(ptr, sizeB, next, nextSize)
	}

	if newPayload > a.maxAvailableFreePayload {
		a.maxAvailableFreePayload = newPayload
	}
	a.stats.FreeCount++
	return nil
}

// freeBusyBusy: neither neighbor is free. B becomes a standalone free block,
// reclaiming one word as its own footer, and is inserted at the list head.
func (a *Allocator) freeBusyBusy(ptr, sizeB, next uint32) uint32 {
	newPayload := sizeB - layout.WordSize
	a.enc.WriteFree(ptr, newPayload, true, layout.HeadSentinel, layout.TailSentinel)
	a.list.InsertHead(ptr)

	old, ok := a.enc.UpdatePrevAlloc(next, false)
	if ok {
		a.sanityCheckPrevAlloc("freeBusyBusy", next, old, true)
	}
	return newPayload
}

// freeBusyFree: B merges with its free successor, reclaiming B's own footer
// word in addition to the successor's payload. The successor's list slot is
// repurposed for B (same prev/next neighbors), so no sentinel-adjacent
// splice is needed beyond that replace.
func (a *Allocator) freeBusyFree(ptr, sizeB, next, nextSize uint32) uint32 {
	prevLink, _ := a.enc.PrevLink(next)
	nextLink, _ := a.enc.NextLink(next)

	newPayload := sizeB + nextSize + layout.WordSize
	a.enc.WriteFree(ptr, newPayload, true, prevLink, nextLink)
	a.list.ReplaceInPlace(next, ptr, prevLink, nextLink)

	// The block following the merged region already carries prev-alloc =
	// false (it described next, which was already free); nothing to update.
	return newPayload
}

// freeFreeBusy: B merges into its free predecessor, which keeps its
// existing list slot — only its header/footer size changes.
func (a *Allocator) freeFreeBusy(ptr, sizeB, next uint32) uint32 {
	prevPayload, ok := a.enc.PrevFreePayload(ptr)
	if !ok {
		return sizeB
	}
	prevSize, prevPrevAlloc, _, ok := a.enc.Header(prevPayload)
	if !ok {
		return sizeB
	}
	prevLink, _ := a.enc.PrevLink(prevPayload)
	nextLink, _ := a.enc.NextLink(prevPayload)

	newPayload := prevSize + sizeB + layout.WordSize
	a.enc.WriteFree(prevPayload, newPayload, prevPrevAlloc, prevLink, nextLink)

	old, ok := a.enc.UpdatePrevAlloc(next, false)
	if ok {
		a.sanityCheckPrevAlloc("freeFreeBusy", next, old, true)
	}
	return newPayload
}

// freeFreeFree: B sits between two free blocks; all three merge into the
// predecessor's slot, reclaiming both B's own footer word and the header/
// footer pair at the predecessor/B boundary, and the successor is removed
// from the list entirely.
func (a *Allocator) freeFreeFree(ptr, sizeB, next, nextSize uint32) uint32 {
	prevPayload, ok := a.enc.PrevFreePayload(ptr)
	if !ok {
		return sizeB
	}
	prevSize, prevPrevAlloc, _, ok := a.enc.Header(prevPayload)
	if !ok {
		return sizeB
	}
	// Remove next first: when it is the predecessor's list neighbor, Remove
	// rewrites the predecessor's links, so they are read only afterwards.
	a.list.Remove(next)

	prevLink, _ := a.enc.PrevLink(prevPayload)
	nextLink, _ := a.enc.NextLink(prevPayload)

	newPayload := prevSize + sizeB + nextSize + 3*layout.WordSize
	a.enc.WriteFree(prevPayload, newPayload, prevPrevAlloc, prevLink, nextLink)

	return newPayload
}
