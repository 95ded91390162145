package lazywriter

import (
	"context"
	"sync"
	"time"
)

// LazyWriter is the process-wide background flush engine: one instance is
// constructed at cache-manager start (spec.md §9 "Design Notes" —
// "there is one per process"). It owns the dirty-stream inventory, the
// global scalars under the master lock, the scan scheduler, and the
// worker pool that drains its work queues.
type LazyWriter struct {
	collab Collaborator
	cfg    Tunables

	entries *entryPool
	pool    *workerPool

	// mu is the master lock (spec.md §5, lock #1). It guards inv, the
	// scalars below, and per-stream Flags/DirtyPages transitions other
	// than the scan's transient pin. It is always acquired before the
	// work-queue lock, and the two are never held together.
	mu  sync.Mutex
	inv *inventory

	totalDirtyPages    int64
	dirtyPageTarget    int64
	pagesWrittenLastTime int64
	dirtyPagesLastScan int64
	pagesYetToWrite    int64
	scanActive         bool
	otherWork          bool

	// postTick is the barrier staging area. Filled under mu by
	// WaitForCurrentActivity; drained under mu at the start of each scan
	// tick, then spliced into the pool's regular lane (work-queue lock)
	// at the end of the same tick.
	postTick lane

	timer *time.Timer
}

// New constructs a LazyWriter wired to collab with the given tunables. It
// does not start the worker pool or arm the timer; call Start for that.
func New(collab Collaborator, cfg Tunables) *LazyWriter {
	lw := &LazyWriter{
		collab:          collab,
		cfg:             cfg,
		entries:         newEntryPool(cfg.EntryCapacity),
		inv:             newInventory(),
		dirtyPageTarget: cfg.DirtyPageTarget,
	}
	lw.pool = newWorkerPool(lw)
	return lw
}

// Start launches the fixed worker pool. The scan timer is armed lazily,
// the first time a stream is marked dirty or a caller calls
// WaitForCurrentActivity — an idle cache has nothing for the lazy writer
// to do (spec.md §8 boundary: "empty inventory ... scan goes idle").
func (lw *LazyWriter) Start(ctx context.Context) {
	lw.pool.start(ctx, lw.cfg.WorkerCount)
}

// Stop cancels all worker goroutines and waits for them to exit. It does
// not drain outstanding work; callers that need a full drain should call
// WaitForCurrentActivity first.
func (lw *LazyWriter) Stop() {
	lw.mu.Lock()
	if lw.timer != nil {
		lw.timer.Stop()
	}
	lw.mu.Unlock()
	lw.pool.stop()
}

// InsertStream registers s as dirty (or pending teardown), wiring it into
// the inventory just ahead of the cursor, and wakes the scheduler if it
// was idle. Callers own s's lifetime; the lazy writer only ever touches
// it under the master lock or while it holds the WRITE_QUEUED pin.
func (lw *LazyWriter) InsertStream(s *StreamDescriptor, dirtyPagesDelta int64) {
	lw.mu.Lock()
	s.DirtyPages += dirtyPagesDelta
	lw.totalDirtyPages += dirtyPagesDelta
	lw.inv.insert(s)
	wasIdle := !lw.scanActive
	if wasIdle {
		lw.scheduleScan(false)
	}
	lw.mu.Unlock()
}

// RemoveStream unlinks s from the inventory. s must not currently be
// WRITE_QUEUED (the caller should have already observed its flush
// complete).
func (lw *LazyWriter) RemoveStream(s *StreamDescriptor) {
	lw.mu.Lock()
	lw.totalDirtyPages -= s.DirtyPages
	lw.inv.remove(s)
	lw.mu.Unlock()
}

// MarkDirty adds delta dirty pages to s (may be negative, e.g. after a
// successful flush) and pokes the scheduler if it was idle. This is the
// only sanctioned way for a Collaborator to adjust a stream's DirtyPages
// outside of a scan tick: both the per-stream count and the process-wide
// total must move together, under the master lock.
func (lw *LazyWriter) MarkDirty(s *StreamDescriptor, delta int64) {
	lw.mu.Lock()
	s.DirtyPages += delta
	lw.totalDirtyPages += delta
	if delta > 0 && !lw.scanActive {
		lw.scheduleScan(false)
	}
	lw.mu.Unlock()
}

// TotalDirtyPages returns the process-wide dirty-page count, taken under
// the master lock. Safe to call concurrently with any other LazyWriter
// method or a running scan.
func (lw *LazyWriter) TotalDirtyPages() int64 {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.totalDirtyPages
}
