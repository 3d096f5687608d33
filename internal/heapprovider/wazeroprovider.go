package heapprovider

import (
	"context"
	"fmt"
	"sync"

	allocerrors "github.com/efmalloc/galloc/internal/errors"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// wasmPageSize is the WebAssembly linear-memory page size: 64 KiB.
const wasmPageSize = 1 << 16

// maxWasmPages caps the backing memory at 2^32 bytes, matching the
// allocator's 32-bit offset space.
const maxWasmPages = (1 << 32) / wasmPageSize

// WazeroProvider backs the heap arena with the linear memory of a real
// WebAssembly module instantiated via github.com/tetratelabs/wazero. This
// gives the external sbrk-style provider abstraction a genuine
// out-of-process-style backing store, exercising wazero.Runtime,
// wazero.CompiledModule, and api.Memory directly.
//
// WASM memory only grows in whole 64 KiB pages, but the allocator's Extend
// calls are 8-byte granular. WazeroProvider tracks a logical size distinct
// from the physical (page-rounded) memory.Size(), growing pages only when
// the logical size would outrun physical capacity.
type WazeroProvider struct {
	mu sync.Mutex

	runtime  wazero.Runtime
	module   wazero.CompiledModule
	instance api.Module
	memory   api.Memory

	logicalSize uint32
}

// NewWazeroProvider compiles and instantiates a minimal module exporting a
// growable "memory", and returns a Provider backed by it. initialPages is the
// module's declared minimum memory size; 0 is treated as 1.
func NewWazeroProvider(ctx context.Context, initialPages uint32) (*WazeroProvider, error) {
	if initialPages == 0 {
		initialPages = 1
	}

	rt := wazero.NewRuntime(ctx)

	moduleBytes := buildMemoryOnlyModule(initialPages, maxWasmPages)
	compiled, err := rt.CompileModule(ctx, moduleBytes)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("galloc: compiling heap module: %w", err)
	}

	instance, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("galloc-heap"))
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("galloc: instantiating heap module: %w", err)
	}

	mem := instance.Memory()
	if mem == nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("galloc: heap module does not export memory")
	}

	return &WazeroProvider{
		runtime:  rt,
		module:   compiled,
		instance: instance,
		memory:   mem,
	}, nil
}

// Close releases the wazero runtime. There is no partial-teardown path for
// the arena itself: the whole provider goes with it.
func (p *WazeroProvider) Close(ctx context.Context) error {
	return p.runtime.Close(ctx)
}

func (p *WazeroProvider) Base() uint64 {
	return 0 // WASM linear memory addresses are relative to the module, not the host
}

func (p *WazeroProvider) Size() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logicalSize
}

func (p *WazeroProvider) Extend(_ context.Context, n uint32) (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := p.logicalSize
	needed := uint64(start) + uint64(n)
	if needed > uint64(^uint32(0)) {
		return 0, allocerrors.ErrOutOfMemory
	}

	if physical := uint64(p.memory.Size()); needed > physical {
		deltaBytes := needed - physical
		deltaPages := uint32((deltaBytes + wasmPageSize - 1) / wasmPageSize)
		if _, ok := p.memory.Grow(deltaPages); !ok {
			return 0, allocerrors.ErrOutOfMemory
		}
	}

	p.logicalSize = uint32(needed)
	return start, nil
}

func (p *WazeroProvider) ReadUint32(off uint32) (uint32, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if uint64(off)+4 > uint64(p.logicalSize) {
		return 0, false
	}
	return p.memory.ReadUint32Le(off)
}

func (p *WazeroProvider) WriteUint32(off uint32, v uint32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if uint64(off)+4 > uint64(p.logicalSize) {
		return false
	}
	return p.memory.WriteUint32Le(off, v)
}

func (p *WazeroProvider) ReadBytes(off uint32, n uint32) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if uint64(off)+uint64(n) > uint64(p.logicalSize) {
		return nil, false
	}
	data, ok := p.memory.Read(off, n)
	if !ok {
		return nil, false
	}
	out := make([]byte, n)
	copy(out, data)
	return out, true
}

func (p *WazeroProvider) WriteBytes(off uint32, data []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if uint64(off)+uint64(len(data)) > uint64(p.logicalSize) {
		return false
	}
	return p.memory.Write(off, data)
}

// buildMemoryOnlyModule hand-assembles the bytes of the smallest valid WASM
// module that declares and exports a growable memory named "memory": magic,
// version, a memory section (one memtype with min/max page limits), and an
// export section (one memory export at index 0). No code section is needed
// because the allocator only ever touches the exported memory directly.
func buildMemoryOnlyModule(minPages, maxPages uint32) []byte {
	var buf []byte
	buf = append(buf, 0x00, 0x61, 0x73, 0x6d) // "\0asm"
	buf = append(buf, 0x01, 0x00, 0x00, 0x00) // version 1

	// Memory section (id 5): vec(memtype), memtype = limits
	var memSec []byte
	memSec = append(memSec, 0x01)       // one memory
	memSec = append(memSec, 0x01)       // limits flag: has max
	memSec = append(memSec, uleb128(minPages)...)
	memSec = append(memSec, uleb128(maxPages)...)
	buf = append(buf, 0x05)
	buf = append(buf, uleb128(uint32(len(memSec)))...)
	buf = append(buf, memSec...)

	// Export section (id 7): vec(export), export = name, kind(0x02=mem), index
	name := "memory"
	var exportEntry []byte
	exportEntry = append(exportEntry, uleb128(uint32(len(name)))...)
	exportEntry = append(exportEntry, []byte(name)...)
	exportEntry = append(exportEntry, 0x02) // memory kind
	exportEntry = append(exportEntry, 0x00) // memory index 0

	var exportSec []byte
	exportSec = append(exportSec, 0x01) // one export
	exportSec = append(exportSec, exportEntry...)
	buf = append(buf, 0x07)
	buf = append(buf, uleb128(uint32(len(exportSec)))...)
	buf = append(buf, exportSec...)

	return buf
}

// uleb128 encodes v as an unsigned LEB128 varint, the integer encoding used
// throughout the WASM binary format.
func uleb128(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			break
		}
	}
	return out
}
