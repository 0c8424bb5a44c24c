// Package parallel fans kernel loops out over goroutines.
//
// Layers are synchronous from the caller's point of view: For returns only
// after every chunk has finished, and chunks write to disjoint output ranges.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Config controls how loops are split.
type Config struct {
	Workers int // Maximum goroutines per loop. Values < 2 run sequentially.
	MinCost int // Minimum estimated cost (multiply-adds) before splitting.
}

var defaultConfig atomic.Pointer[Config]

func init() {
	SetDefault(Config{
		Workers: runtime.GOMAXPROCS(0),
		MinCost: 1 << 15,
	})
}

// Default returns the process-wide configuration used by kernels.
func Default() Config { return *defaultConfig.Load() }

// SetDefault replaces the process-wide configuration.
// Setting Workers to 1 makes every kernel single-threaded.
func SetDefault(cfg Config) {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	defaultConfig.Store(&cfg)
}

// For runs f(i) for every i in [0, n).
//
// cost is the estimated work of the whole loop; cheap loops run inline.
// f must only write state owned by index i.
func For(n, cost int, f func(i int)) {
	cfg := Default()
	workers := min(cfg.Workers, n)
	if workers < 2 || cost < cfg.MinCost {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunk := (n + workers - 1) / workers
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}
