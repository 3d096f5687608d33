package heapprovider

import (
	"context"
	"encoding/binary"
	"sync"
	"sync/atomic"

	allocerrors "github.com/efmalloc/galloc/internal/errors"
)

// MemProvider is a growable-[]byte-backed Provider: no external dependency,
// the default used by unit tests and by any caller that doesn't need a real
// WASM sandbox backing the arena.
type MemProvider struct {
	mu   sync.Mutex
	base uint64
	mem  []byte

	growCount  atomic.Uint64
	bytesGrown atomic.Uint64
}

// NewMemProvider creates a MemProvider with an empty region. Callers extend
// it via Extend (internal/allocator.New does this as part of init).
func NewMemProvider() *MemProvider {
	return &MemProvider{base: 0x1000} // arbitrary non-zero base, mirrors a real heap start
}

func (p *MemProvider) Base() uint64 {
	return p.base
}

func (p *MemProvider) Size() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return uint32(len(p.mem))
}

func (p *MemProvider) Extend(_ context.Context, n uint32) (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := uint32(len(p.mem))
	if uint64(start)+uint64(n) > uint64(^uint32(0)) {
		return 0, allocerrors.ErrOutOfMemory
	}
	p.mem = append(p.mem, make([]byte, n)...)
	p.growCount.Add(1)
	p.bytesGrown.Add(uint64(n))
	return start, nil
}

func (p *MemProvider) ReadUint32(off uint32) (uint32, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if uint64(off)+4 > uint64(len(p.mem)) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(p.mem[off : off+4]), true
}

func (p *MemProvider) WriteUint32(off uint32, v uint32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if uint64(off)+4 > uint64(len(p.mem)) {
		return false
	}
	binary.LittleEndian.PutUint32(p.mem[off:off+4], v)
	return true
}

func (p *MemProvider) ReadBytes(off uint32, n uint32) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if uint64(off)+uint64(n) > uint64(len(p.mem)) {
		return nil, false
	}
	out := make([]byte, n)
	copy(out, p.mem[off:off+n])
	return out, true
}

func (p *MemProvider) WriteBytes(off uint32, data []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if uint64(off)+uint64(len(data)) > uint64(len(p.mem)) {
		return false
	}
	copy(p.mem[off:], data)
	return true
}

// Stats reports cumulative growth activity.
type Stats struct {
	GrowCount  uint64
	BytesGrown uint64
}

func (p *MemProvider) Stats() Stats {
	return Stats{
		GrowCount:  p.growCount.Load(),
		BytesGrown: p.bytesGrown.Load(),
	}
}
