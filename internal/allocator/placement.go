package allocator

import (
	"context"

	allocerrors "github.com/efmalloc/galloc/internal/errors"
	"github.com/efmalloc/galloc/internal/layout"
)

// splitSlackThreshold is the minimum slack a fitting
// candidate must have before it's split rather than consumed whole — below
// this the remainder couldn't hold a usable free block.
const splitSlackThreshold = 16

// candidate is a fitting free block found during search.
type candidate struct {
	payload uint32
	size    uint32 // interior payload size of the free block
}

// Allocate places a block of n bytes and returns its payload offset.
func (a *Allocator) Allocate(ctx context.Context, n uint32) (uint32, error) {
	req64 := layout.RequiredBlockSize64(uint64(n))

	if uint64(a.provider.Size())+req64 > uint64(layout.MaxOffset) {
		return 0, allocerrors.ErrOutOfMemory
	}
	req := uint32(req64)

	var found *candidate
	if req <= a.maxAvailableFreePayload+layout.WordSize {
		found = a.search(req)
	}

	var payload uint32
	if found == nil {
		var err error
		payload, err = a.extendAndPlace(ctx, req)
		if err != nil {
			return 0, err
		}
	} else {
		payload = a.place(*found, req)
	}

	a.stats.AllocCount++
	return payload, nil
}

// search walks the free list from HEAD, considering up to FitNumber
// candidates that fit req, and returns the smallest of those seen.
func (a *Allocator) search(req uint32) *candidate {
	var best *candidate
	seen := uint32(0)

	a.list.Walk(func(payload uint32) bool {
		size, _, selfAlloc, ok := a.enc.Header(payload)
		if !ok || selfAlloc {
			return true // metadata hiccup; keep walking rather than abort
		}
		if size+layout.WordSize < req {
			return true // doesn't fit
		}
		seen++
		if best == nil || size < best.size {
			best = &candidate{payload: payload, size: size}
		}
		return seen < a.cfg.FitNumber
	})

	return best
}

// place realizes a found candidate: consume-whole if slack is below
// splitSlackThreshold, otherwise split off a remainder free block.
func (a *Allocator) place(c candidate, req uint32) uint32 {
	slack := (c.size + layout.WordSize) - req
	_, prevAlloc, _, _ := a.enc.Header(c.payload)

	if slack < splitSlackThreshold {
		return a.consumeWhole(c, prevAlloc)
	}
	return a.split(c, req, prevAlloc)
}

// consumeWhole removes the candidate from the free list entirely and hands
// its full size to the allocated block, reclaiming the free block's footer
// word: the allocated span is c.size+WordSize, not c.size.
func (a *Allocator) consumeWhole(c candidate, prevAlloc bool) uint32 {
	a.list.Remove(c.payload)
	allocSize := c.size + layout.WordSize
	a.enc.WriteAllocated(c.payload, allocSize, prevAlloc)

	next := layout.NextPhysicalPayload(c.payload, allocSize, true)
	old, ok := a.enc.UpdatePrevAlloc(next, true)
	if ok {
		a.sanityCheckPrevAlloc("consumeWhole", next, old, false)
	}
	return c.payload
}

// split carves req bytes off the front of the candidate, leaving a smaller
// free block in the candidate's former list slot.
func (a *Allocator) split(c candidate, req uint32, prevAlloc bool) uint32 {
	remainderPayload := (c.size + layout.WordSize) - req - 2*layout.WordSize

	prevLink, _ := a.enc.PrevLink(c.payload)
	nextLink, _ := a.enc.NextLink(c.payload)

	a.enc.WriteAllocated(c.payload, req, prevAlloc)

	remainderOff := c.payload + req + layout.WordSize
	a.enc.WriteFree(remainderOff, remainderPayload, true, prevLink, nextLink)
	a.list.ReplaceInPlace(c.payload, remainderOff, prevLink, nextLink)

	return c.payload
}

// extendAndPlace grows the heap by req+4 bytes and places the new
// allocated block at the former epilogue's position.
func (a *Allocator) extendAndPlace(ctx context.Context, req uint32) (uint32, error) {
	epilogueOff := a.provider.Size() - layout.WordSize
	epilogueWord, ok := a.provider.ReadUint32(epilogueOff)
	if !ok {
		return 0, allocerrors.New(allocerrors.CodeMetadataInconsistency, "could not read epilogue header before extending")
	}
	prevAlloc := layout.PrevAllocOf(epilogueWord)

	growBy := req + layout.WordSize
	if _, err := a.provider.Extend(ctx, growBy); err != nil {
		return 0, err
	}
	a.stats.HeapExtends++

	payload := epilogueOff + layout.WordSize
	a.enc.WriteAllocated(payload, req, prevAlloc)

	newEpilogueOff := a.provider.Size() - layout.WordSize
	a.provider.WriteUint32(newEpilogueOff, layout.PackHeader(0, true, true))

	return payload, nil
}
