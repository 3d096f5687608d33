package allocator

import (
	"fmt"

	"github.com/efmalloc/galloc/internal/layout"
)

// Diagnostic describes one discrepancy found by CheckHeap. The checker is
// purely observational — it never repairs what it finds.
type Diagnostic struct {
	Offset  uint32
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("offset %d: %s", d.Offset, d.Message)
}

// CheckHeap walks the free list forward from HEAD, verifying each entry is
// actually marked free, has a positive size, and sits within the heap; then
// walks backward from TAIL verifying the header/footer of each entry agree.
// With verbose set, it additionally logs a raw word-by-word heap dump.
func (a *Allocator) CheckHeap(verbose bool) []Diagnostic {
	var diags []Diagnostic
	heapSize := a.provider.Size()

	seen := make(map[uint32]bool)
	cur := a.list.Head()
	for cur != layout.TailSentinel {
		if seen[cur] {
			diags = append(diags, Diagnostic{cur, "cycle detected in free list"})
			break
		}
		seen[cur] = true

		if cur < layout.SentinelAreaSize+layout.WordSize || cur >= heapSize {
			diags = append(diags, Diagnostic{cur, "free-list entry offset outside heap range"})
			break
		}

		size, _, selfAlloc, ok := a.enc.Header(cur)
		if !ok {
			diags = append(diags, Diagnostic{cur, "could not read header"})
			break
		}
		if selfAlloc {
			diags = append(diags, Diagnostic{cur, "free-list entry is marked allocated"})
		}
		if size == 0 {
			diags = append(diags, Diagnostic{cur, "free-list entry has non-positive size"})
		}

		next, ok := a.enc.NextLink(cur)
		if !ok {
			diags = append(diags, Diagnostic{cur, "could not read next link"})
			break
		}
		cur = next
	}

	cur = a.list.Tail()
	seen = make(map[uint32]bool)
	for cur != layout.HeadSentinel {
		if seen[cur] {
			diags = append(diags, Diagnostic{cur, "cycle detected in free list (backward)"})
			break
		}
		seen[cur] = true

		size, _, selfAlloc, ok := a.enc.Header(cur)
		if !ok {
			diags = append(diags, Diagnostic{cur, "could not read header (backward walk)"})
			break
		}
		footerSize, footerSelfAlloc, ok := a.enc.Footer(cur, size)
		if !ok {
			diags = append(diags, Diagnostic{cur, "could not read footer"})
			break
		}
		if footerSize != size {
			diags = append(diags, Diagnostic{cur, fmt.Sprintf("header/footer size mismatch: %d vs %d", size, footerSize)})
		}
		if footerSelfAlloc != selfAlloc {
			diags = append(diags, Diagnostic{cur, "header/footer self-alloc bit mismatch"})
		}

		prev, ok := a.enc.PrevLink(cur)
		if !ok {
			diags = append(diags, Diagnostic{cur, "could not read prev link"})
			break
		}
		cur = prev
	}

	if verbose {
		a.dumpHeap(heapSize)
	}
	for _, d := range diags {
		a.debugf("checker", "heap checker: %s", d.String())
	}
	return diags
}

// dumpHeap logs every word of the heap's metadata region, for verbose
// CheckHeap invocations.
func (a *Allocator) dumpHeap(heapSize uint32) {
	for off := uint32(0); off+layout.WordSize <= heapSize; off += layout.WordSize {
		v, ok := a.provider.ReadUint32(off)
		if !ok {
			a.debugf("checker:dump", "heap dump: offset %d: <unreadable>", off)
			continue
		}
		a.debugf("checker:dump", "heap dump: offset %4d: 0x%08x", off, v)
	}
}
