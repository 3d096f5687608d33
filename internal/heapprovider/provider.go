// Package heapprovider implements the "sbrk-style" external collaborator the
// allocator is layered on: something that owns a contiguous, monotonically
// growing byte region and can report its base address, current size, and
// grow on request. The allocator never moves existing bytes and never shrinks
// a provider; both guarantees live here, not in internal/allocator.
package heapprovider

import "context"

// Provider is the allocator's heap-provider abstraction. Implementations
// MUST NOT move previously returned bytes, and Extend MUST only be called
// with 8-byte-aligned n (the caller, internal/allocator, guarantees this).
type Provider interface {
	// Base returns the provider's stable base address. Stable for the
	// lifetime of the process.
	Base() uint64
	// Size returns the current total size of the region, in bytes.
	Size() uint32
	// Extend grows the region by n bytes and returns the heap-relative
	// offset at which the new region begins (always the prior Size()).
	// Returns an error if growth is refused.
	Extend(ctx context.Context, n uint32) (uint32, error)

	// ReadUint32 reads the little-endian word at heap-relative offset off.
	// ok is false if [off, off+4) is out of range.
	ReadUint32(off uint32) (v uint32, ok bool)
	// WriteUint32 writes the little-endian word at heap-relative offset off.
	// ok is false if [off, off+4) is out of range.
	WriteUint32(off uint32, v uint32) (ok bool)
	// ReadBytes returns a copy of the n bytes at heap-relative offset off.
	// ok is false if [off, off+n) is out of range.
	ReadBytes(off uint32, n uint32) (data []byte, ok bool)
	// WriteBytes copies data into the region starting at heap-relative
	// offset off. ok is false if the write would run out of range.
	WriteBytes(off uint32, data []byte) (ok bool)
}
