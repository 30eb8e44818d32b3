package securedata

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"

	kerrors "krypton.module/internal/errors"
)

// Arena accounts protected allocations against an optional byte quota.
// Footprints are rounded up to whole pages because that is what the kernel
// locks. A quota of zero leaves the limit to the platform (RLIMIT_MEMLOCK).
type Arena struct {
	alloc Allocator

	mu      sync.Mutex
	quota   int
	inUse   int
	buffers int
	logger  *slog.Logger
}

// ArenaStats is a snapshot of an Arena's accounting.
type ArenaStats struct {
	Quota   int
	InUse   int
	Buffers int
}

var defaultArena = sync.OnceValue(func() *Arena {
	return NewArena(MemcallAllocator(), 0)
})

// DefaultArena is the process-wide arena backed by MemcallAllocator.
func DefaultArena() *Arena {
	return defaultArena()
}

func NewArena(alloc Allocator, quota int) *Arena {
	if quota < 0 {
		quota = 0
	}
	return &Arena{
		alloc:  alloc,
		quota:  quota,
		logger: slog.New(slog.DiscardHandler),
	}
}

// SetQuota changes the limit for future reservations. Live buffers are not
// affected even if they now exceed it.
func (a *Arena) SetQuota(quota int) {
	if quota < 0 {
		quota = 0
	}
	a.mu.Lock()
	a.quota = quota
	a.mu.Unlock()
}

func (a *Arena) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	a.mu.Lock()
	a.logger = logger
	a.mu.Unlock()
}

func (a *Arena) Quota() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.quota
}

func (a *Arena) Stats() ArenaStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return ArenaStats{Quota: a.quota, InUse: a.inUse, Buffers: a.buffers}
}

func (a *Arena) log() *slog.Logger {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.logger
}

// reserve books the page-rounded footprint of a length byte buffer.
func (a *Arena) reserve(length int) (int, error) {
	footprint, ok := pageRound(length)
	if !ok {
		return 0, kerrors.NewAllocationError(length, 0,
			fmt.Errorf("%d bytes cannot be rounded to whole pages", length))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.quota > 0 && footprint > a.quota-a.inUse {
		return 0, kerrors.NewAllocationError(length, a.quota, nil).
			WithContext("in_use", a.inUse)
	}
	a.inUse += footprint
	a.buffers++
	return footprint, nil
}

func (a *Arena) unreserve(footprint int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.inUse -= footprint
	a.buffers--
}

// pageRound reports false when rounding n up would overflow int.
func pageRound(n int) (int, bool) {
	if n <= 0 {
		return 0, true
	}
	page := os.Getpagesize()
	if n > math.MaxInt-page {
		return 0, false
	}
	return (n + page - 1) / page * page, true
}
