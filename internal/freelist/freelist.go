// Package freelist implements the intrusive doubly-linked free list threaded
// through free blocks, with HEAD/TAIL sentinel offsets stored at the start
// of the heap. It knows nothing about placement or
// coalescing policy — only how to keep the list's links consistent.
package freelist

import (
	"github.com/efmalloc/galloc/internal/heapprovider"
	"github.com/efmalloc/galloc/internal/layout"
)

// List is a thin wrapper around a Provider + Encoder giving free-list
// operations. The sentinel words live at heap offsets HeadSentinel(0) and
// TailSentinel(4); List.Head()/Tail() read them directly, matching mm.c's
// GET_HEAD/GET_TAIL macros.
type List struct {
	enc *layout.Encoder
}

// New wraps a Provider's sentinel area as a List.
func New(enc *layout.Encoder) *List {
	return &List{enc: enc}
}

// Head returns the payload offset of the first free block, or TailSentinel
// if the list is empty.
func (l *List) Head() uint32 {
	v, ok := l.enc.P.ReadUint32(layout.HeadSentinel)
	if !ok {
		return layout.TailSentinel
	}
	return v
}

// Tail returns the payload offset of the last free block, or HeadSentinel
// if the list is empty.
func (l *List) Tail() uint32 {
	v, ok := l.enc.P.ReadUint32(layout.TailSentinel)
	if !ok {
		return layout.HeadSentinel
	}
	return v
}

func (l *List) setHead(v uint32) bool { return l.enc.P.WriteUint32(layout.HeadSentinel, v) }
func (l *List) setTail(v uint32) bool { return l.enc.P.WriteUint32(layout.TailSentinel, v) }

// Empty reports whether the free list currently holds no blocks.
func (l *List) Empty() bool {
	return l.Head() == layout.TailSentinel
}

// InsertHead links b in at the head of the list. The caller
// is responsible for having already written b's own header/footer; InsertHead
// only touches links and the HEAD/TAIL sentinels.
func (l *List) InsertHead(b uint32) {
	oldHead := l.Head()
	l.enc.SetPrevLink(b, layout.HeadSentinel)
	l.enc.SetNextLink(b, oldHead)
	if oldHead == layout.TailSentinel {
		l.setTail(b)
	} else {
		l.enc.SetPrevLink(oldHead, b)
	}
	l.setHead(b)
}

// Remove splices b out of the list, rewiring HEAD/TAIL when b sits at an
// end.
func (l *List) Remove(b uint32) {
	prev, _ := l.enc.PrevLink(b)
	next, _ := l.enc.NextLink(b)

	if prev == layout.HeadSentinel {
		l.setHead(next)
	} else {
		l.enc.SetNextLink(prev, next)
	}

	if next == layout.TailSentinel {
		l.setTail(prev)
	} else {
		l.enc.SetPrevLink(next, prev)
	}
}

// ReplaceInPlace swaps an existing list member old for replacement in the
// same list position, inheriting old's neighbors (used by the placement
// engine's split path and the coalescer, which repurpose a block's list
// slot instead of removing-then-reinserting).
func (l *List) ReplaceInPlace(old, replacement, prev, next uint32) {
	if prev == layout.HeadSentinel {
		l.setHead(replacement)
	} else {
		l.enc.SetNextLink(prev, replacement)
	}
	if next == layout.TailSentinel {
		l.setTail(replacement)
	} else {
		l.enc.SetPrevLink(next, replacement)
	}
}

// Walk calls fn for every free block from HEAD to TAIL, stopping early if fn
// returns false. Used by placement search.
func (l *List) Walk(fn func(payload uint32) bool) {
	cur := l.Head()
	for cur != layout.TailSentinel {
		next, ok := l.enc.NextLink(cur)
		if !ok {
			return
		}
		if !fn(cur) {
			return
		}
		cur = next
	}
}

// InitSentinels sets HEAD = TAIL = single (the one free block created at
// heap init).
func (l *List) InitSentinels(single uint32) {
	l.setHead(single)
	l.setTail(single)
}

// Provider exposes the underlying heapprovider.Provider this list reads
// through its encoder — used by callers that need direct offset access
// alongside list operations.
func (l *List) Provider() heapprovider.Provider { return l.enc.P }
