// Package galloc is the public entry point to the allocator: a Client that
// owns a heap provider and the allocator wired to it.
package galloc

import (
	"context"
	"time"

	"github.com/efmalloc/galloc/internal/allocator"
	"github.com/efmalloc/galloc/internal/heapprovider"
)

// Config configures a Client's allocator and, when using the WASM-backed
// provider, its initial memory footprint.
type Config struct {
	// FitNumber is the first-k-fit search window. Default 1.
	FitNumber uint32

	// InitialPages sets the WazeroProvider's starting page count. Ignored
	// by NewClient (which uses MemProvider); used by NewWazeroClient.
	InitialPages uint32

	// EnableDebugLog turns on diagnostic logging for double-free,
	// metadata-inconsistency, and heap-checker output.
	EnableDebugLog bool

	// DebugLogInterval throttles repeated identical diagnostics.
	DebugLogInterval time.Duration
}

// DefaultConfig returns the Client's default configuration.
func DefaultConfig() *Config {
	return &Config{
		FitNumber:    1,
		InitialPages: 1,
	}
}

func (c *Config) allocatorOptions() []allocator.Option {
	return []allocator.Option{
		allocator.WithFitNumber(c.FitNumber),
		allocator.WithDebugLog(c.EnableDebugLog),
		func(ac *allocator.Config) { ac.DebugLogInterval = c.DebugLogInterval },
	}
}

// Client wraps a heap provider and the allocator running over it.
type Client struct {
	provider heapprovider.Provider
	alloc    *allocator.Allocator
}

// NewClient creates a Client backed by an in-memory growable arena
// (heapprovider.MemProvider) — the default used when no WASM sandbox is
// required.
func NewClient(ctx context.Context, config *Config) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	provider := heapprovider.NewMemProvider()
	a, err := allocator.New(ctx, provider, config.allocatorOptions()...)
	if err != nil {
		return nil, err
	}
	return &Client{provider: provider, alloc: a}, nil
}

// NewWazeroClient creates a Client backed by the linear memory of a real
// WebAssembly module instantiated via wazero.
func NewWazeroClient(ctx context.Context, config *Config) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	pages := config.InitialPages
	if pages == 0 {
		pages = 1
	}
	provider, err := heapprovider.NewWazeroProvider(ctx, pages)
	if err != nil {
		return nil, err
	}
	a, err := allocator.New(ctx, provider, config.allocatorOptions()...)
	if err != nil {
		provider.Close(ctx)
		return nil, err
	}
	return &Client{provider: provider, alloc: a}, nil
}

// Allocate places a block of n bytes and returns its heap-relative offset.
func (c *Client) Allocate(ctx context.Context, n uint32) (uint32, error) {
	return c.alloc.Allocate(ctx, n)
}

// Free returns the block at ptr to the free list.
func (c *Client) Free(ptr uint32) error {
	return c.alloc.Free(ptr)
}

// Reallocate resizes the block at ptr to size bytes.
func (c *Client) Reallocate(ctx context.Context, ptr, size uint32) (uint32, error) {
	return c.alloc.Reallocate(ctx, ptr, size)
}

// ZeroedAllocate allocates nmemb*size zeroed bytes.
func (c *Client) ZeroedAllocate(ctx context.Context, nmemb, size uint32) (uint32, error) {
	return c.alloc.ZeroedAllocate(ctx, nmemb, size)
}

// CheckHeap runs the heap consistency checker.
func (c *Client) CheckHeap(verbose bool) []allocator.Diagnostic {
	return c.alloc.CheckHeap(verbose)
}

// Stats returns a snapshot of cumulative allocator activity.
func (c *Client) Stats() allocator.Stats {
	return c.alloc.Stats()
}

// Read copies n bytes out of the block at ptr, starting at its payload.
func (c *Client) Read(ptr uint32, n uint32) ([]byte, bool) {
	return c.provider.ReadBytes(ptr, n)
}

// Write copies data into the block at ptr, starting at its payload.
func (c *Client) Write(ptr uint32, data []byte) bool {
	return c.provider.WriteBytes(ptr, data)
}

// Close releases the Client's underlying heap provider, if it holds one
// that needs teardown (e.g. a wazero runtime). Providers with no teardown
// path, like MemProvider, treat this as a no-op.
func (c *Client) Close(ctx context.Context) error {
	if closer, ok := c.provider.(interface{ Close(context.Context) error }); ok {
		return closer.Close(ctx)
	}
	return nil
}
