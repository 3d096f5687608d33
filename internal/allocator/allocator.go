// Package allocator implements the explicit, boundary-tag allocator core:
// initialization, the placement engine (placement.go), the coalescer
// (coalesce.go), reallocate/zeroed-allocate (reallocate.go), and the heap
// consistency checker (checker.go). It is single-threaded — callers that
// need concurrent access must serialize with an external mutex.
package allocator

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	allocerrors "github.com/efmalloc/galloc/internal/errors"
	"github.com/efmalloc/galloc/internal/freelist"
	"github.com/efmalloc/galloc/internal/heapprovider"
	"github.com/efmalloc/galloc/internal/layout"
)

// Config configures an Allocator, following the plain-struct-plus-
// DefaultConfig-plus-functional-options shape used throughout this module.
type Config struct {
	// FitNumber is the first-k-fit search window. Default 1
	// (pure first-fit).
	FitNumber uint32

	// EnableDebugLog turns on the allocator's diagnostic logging channel
	// (double-free, metadata-inconsistency, checker output).
	EnableDebugLog bool

	// DebugLogInterval throttles repeated identical diagnostics so a tight
	// loop of double-frees doesn't flood stderr. Zero means no throttling.
	DebugLogInterval time.Duration

	// Logger receives diagnostic output when EnableDebugLog is set. Defaults
	// to a logger writing to os.Stderr tagged "[galloc]".
	Logger *log.Logger
}

// DefaultConfig returns the allocator's default configuration.
func DefaultConfig() *Config {
	return &Config{
		FitNumber:      1,
		EnableDebugLog: false,
		Logger:         log.New(os.Stderr, "[galloc] ", log.LstdFlags),
	}
}

// Option mutates a Config.
type Option func(*Config)

// WithFitNumber overrides the first-k-fit search window.
func WithFitNumber(k uint32) Option {
	return func(c *Config) { c.FitNumber = k }
}

// WithDebugLog enables or disables diagnostic logging.
func WithDebugLog(enabled bool) Option {
	return func(c *Config) { c.EnableDebugLog = enabled }
}

// WithLogger overrides the diagnostic logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// Stats is a read-only snapshot of allocator activity.
type Stats struct {
	AllocCount   uint64
	FreeCount    uint64
	ReallocCount uint64
	ZeroedAllocs uint64
	DoubleFrees  uint64
	HeapExtends  uint64
}

// Allocator is the explicit boundary-tag heap allocator. Not safe for
// concurrent use — the caller serializes.
type Allocator struct {
	provider heapprovider.Provider
	enc      *layout.Encoder
	list     *freelist.List
	cfg      Config

	maxAvailableFreePayload uint32
	stats                   Stats

	lastLog map[string]time.Time
}

// New initializes an allocator over provider: requests layout.InitialHeapBytes
// from the provider, lays out the sentinel area, the first free block, and
// the epilogue header.
func New(ctx context.Context, provider heapprovider.Provider, opts ...Option) (*Allocator, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.FitNumber == 0 {
		cfg.FitNumber = 1
	}

	a := &Allocator{
		provider: provider,
		enc:      layout.NewEncoder(provider),
		cfg:      *cfg,
		lastLog:  make(map[string]time.Time),
	}
	a.list = freelist.New(a.enc)

	start, err := provider.Extend(ctx, layout.InitialHeapBytes)
	if err != nil {
		return nil, fmt.Errorf("galloc: initializing heap: %w", err)
	}
	if start != 0 {
		return nil, fmt.Errorf("galloc: heap provider must start empty, got base offset %d", start)
	}

	const firstPayload = layout.SentinelAreaSize + 2*layout.WordSize // 16: sentinel(8) + alignment pad(4) + header(4)
	if !a.enc.WriteFree(firstPayload, layout.InitialFreeBlockSize, true, layout.HeadSentinel, layout.TailSentinel) {
		return nil, fmt.Errorf("galloc: writing initial free block")
	}
	epilogueOff := layout.NextPhysicalPayload(firstPayload, layout.InitialFreeBlockSize, false) - layout.WordSize
	if !provider.WriteUint32(epilogueOff, layout.PackHeader(0, false, true)) {
		return nil, fmt.Errorf("galloc: writing epilogue header")
	}

	a.list.InitSentinels(firstPayload)
	a.maxAvailableFreePayload = layout.InitialFreeBlockSize

	return a, nil
}

// Stats returns a snapshot of cumulative allocator activity.
func (a *Allocator) Stats() Stats { return a.stats }

// MaxAvailableFreePayload returns the cached upper bound used by the
// fast-reject test: a monotonic bound, raised on free/coalesce,
// never lowered on allocate.
func (a *Allocator) MaxAvailableFreePayload() uint32 { return a.maxAvailableFreePayload }

// Provider exposes the backing heap provider, e.g. so callers can read/write
// payload bytes directly (pkg/galloc does this for its byte-slice API).
func (a *Allocator) Provider() heapprovider.Provider { return a.provider }

func (a *Allocator) debugf(key, format string, args ...interface{}) {
	if !a.cfg.EnableDebugLog || a.cfg.Logger == nil {
		return
	}
	if a.cfg.DebugLogInterval > 0 {
		if last, ok := a.lastLog[key]; ok && time.Since(last) < a.cfg.DebugLogInterval {
			return
		}
		a.lastLog[key] = time.Now()
	}
	a.cfg.Logger.Printf(format, args...)
}

// sanityCheckPrevAlloc logs a metadata-inconsistency diagnostic when an
// update finds the predecessor-alloc bit wasn't what the caller expected,
// then proceeds regardless.
func (a *Allocator) sanityCheckPrevAlloc(where string, payload uint32, old, want bool) {
	if old != want {
		a.debugf("metadata:"+where, "%s: metadata inconsistency at offset %d: predecessor-alloc was %v, expected %v",
			allocerrors.CodeMetadataInconsistency, payload, old, want)
	}
}
