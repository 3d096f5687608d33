// Command galloc is a small demo of the allocator, wired to a
// real WebAssembly-linear-memory-backed heap provider.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/efmalloc/galloc/pkg/galloc"
)

func main() {
	ctx := context.Background()

	client, err := galloc.NewWazeroClient(ctx, &galloc.Config{
		FitNumber:      1,
		InitialPages:   1,
		EnableDebugLog: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "galloc: failed to initialize heap: %v\n", err)
		os.Exit(1)
	}
	defer client.Close(ctx)

	a, err := client.Allocate(ctx, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "galloc: allocate failed: %v\n", err)
		os.Exit(1)
	}
	client.Write(a, []byte("hello from the galloc demo, running over a real wasm arena"))

	b, err := client.Allocate(ctx, 128)
	if err != nil {
		fmt.Fprintf(os.Stderr, "galloc: allocate failed: %v\n", err)
		os.Exit(1)
	}

	if err := client.Free(a); err != nil {
		fmt.Fprintf(os.Stderr, "galloc: free failed: %v\n", err)
		os.Exit(1)
	}

	c, err := client.Reallocate(ctx, b, 256)
	if err != nil {
		fmt.Fprintf(os.Stderr, "galloc: reallocate failed: %v\n", err)
		os.Exit(1)
	}

	if diags := client.CheckHeap(true); len(diags) > 0 {
		for _, d := range diags {
			fmt.Fprintf(os.Stderr, "galloc: heap check: %s\n", d.String())
		}
		os.Exit(1)
	}

	stats := client.Stats()
	fmt.Printf("galloc demo complete: %d allocations, %d frees, %d reallocations, final pointer offset %d\n",
		stats.AllocCount, stats.FreeCount, stats.ReallocCount, c)
}
