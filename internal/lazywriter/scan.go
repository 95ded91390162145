package lazywriter

import (
	"context"
	"runtime"
)

// runScan is the body of one tick (spec.md §4.2). It is invoked by a
// worker draining a LazyWriteScan job; scanActive plus the single-job
// posting in timerFired/scheduleScan keep those jobs from overlapping.
// A worker's tail-of-drain rescan (maybeRescanOnExit) also calls it
// directly, outside that guard.
func (lw *LazyWriter) runScan(ctx context.Context) {
	lw.mu.Lock()

	if lw.totalDirtyPages == 0 && !lw.otherWork {
		if !lw.collab.DeferredWritesPending() {
			lw.scanActive = false
			lw.mu.Unlock()
			return
		}
		lw.mu.Unlock()
		lw.collab.PostDeferredWrites()
		lw.ScheduleScan(false)
		return
	}

	// Barrier drain: freeze the set of barriers that must fire at the end
	// of this tick, by moving them out of post_tick (master-lock-guarded)
	// into a local lane. Anything queued into post_tick after this point
	// belongs to the next tick.
	var barriers lane
	lw.postTick.drainInto(&barriers)

	budget := lw.computeBudget()
	lw.iterate(budget)

	lw.mu.Unlock()

	if barriers.len() > 0 {
		lw.pool.mu.Lock()
		barriers.drainInto(&lw.pool.queues.regular)
		if !lw.pool.queueThrottle && lw.pool.idleWorkerCount > 0 {
			lw.pool.cond.Broadcast()
		}
		lw.pool.mu.Unlock()
	}

	if lw.collab.DeferredWritesPending() {
		lw.collab.PostDeferredWrites()
	}
	lw.ScheduleScan(false)
}

// saturatingSub returns max(a-b, 0). Used wherever spec.md's Open
// Question about unsigned-subtraction underflow applies; here with
// signed int64 arithmetic the subtraction can never wrap, but the helper
// keeps the non-negative invariant explicit and gives the underflow
// scenario (pages_to_write computed larger than total_dirty_pages) a
// named, tested seam.
func saturatingSub(a, b int64) int64 {
	if a < b {
		return 0
	}
	return a - b
}

// computeBudget implements spec.md §4.2's budget computation. Must be
// called with the master lock held; it reads and publishes the global
// scalars.
func (lw *LazyWriter) computeBudget() int64 {
	total := lw.totalDirtyPages

	pagesToWrite := total
	if total > ageTarget {
		pagesToWrite = total / ageTarget
	}

	foregroundRate := total + lw.pagesWrittenLastTime - lw.dirtyPagesLastScan
	if foregroundRate < 0 {
		foregroundRate = 0
	}

	estimate := saturatingSub(total, pagesToWrite) + foregroundRate
	if estimate > lw.dirtyPageTarget {
		pagesToWrite += estimate - lw.dirtyPageTarget
	}

	lw.dirtyPagesLastScan = total
	lw.pagesYetToWrite = pagesToWrite
	lw.pagesWrittenLastTime = pagesToWrite
	lw.otherWork = false

	return pagesToWrite
}

// isSmallSystem reports whether the process-wide dirty-page target is low
// enough that MODIFIED_WRITE_DISABLED streams should be flushed every
// tick rather than throttled to 1-in-16 (spec.md §4.2 step 2's "the
// system is small").
func (lw *LazyWriter) isSmallSystem() bool {
	return lw.cfg.SmallSystemThreshold > 0 && lw.dirtyPageTarget <= lw.cfg.SmallSystemThreshold
}

// isEligible implements spec.md §4.2 step 2. Must be called with the
// master lock held. It has the side effect of incrementing
// s.LazyWritePassCount whenever the dirty/budget preconditions of the
// second clause are reached, exactly mirroring the source's
// "(++lazy_write_pass_count & 0xF) == 0" expression.
func (lw *LazyWriter) isEligible(s *StreamDescriptor, remaining int64, small bool) bool {
	if s.DirtyPages > 0 && s.Flags.has(FlagWaitingForTeardown) {
		return true
	}

	if s.DirtyPages > 0 && remaining > 0 {
		s.LazyWritePassCount++
		passGate := s.LazyWritePassCount&passCountMask == 0 ||
			!s.Flags.has(FlagModifiedWriteDisabled) ||
			small ||
			s.DirtyPages >= 4*lw.cfg.MaxWriteBehindPages
		if passGate {
			tempGate := !s.Flags.has(FlagTemporaryFile) ||
				s.OpenCount == 0 ||
				!lw.collab.CanIWrite(s.File, int(lw.cfg.MaxWriteBehindPages), false, 0)
			if tempGate {
				return true
			}
		}
	}

	// Parsed as ((open==0 ∧ dirty==0) ∨ size==0) — spec.md §9 Open
	// Question preserves this reading rather than guessing the author's
	// intended parenthesization.
	if s.OpenCount == 0 && s.DirtyPages == 0 {
		return true
	}
	if s.FileSize == 0 {
		return true
	}
	return false
}

// iterate walks the inventory from the cursor's successor, dispatching
// flushes for eligible streams and moving the cursor to mark where the
// next tick resumes (spec.md §4.2 "Iteration" through step 7). Must be
// called, and returns, with the master lock held.
func (lw *LazyWriter) iterate(pagesToWriteBudget int64) {
	if lw.inv.empty() {
		return
	}

	remaining := pagesToWriteBudget
	start := lw.inv.startPoint()

	var firstVisited *StreamDescriptor
	alreadyMoved := false
	skipped := 0
	small := lw.isSmallSystem()

	cur := start
	for {
		if cur.Flags.has(FlagIsCursor) {
			break
		}
		// Captured before any cursor splice below: moving the cursor
		// behind cur rewrites cur.next, so the successor must be pinned
		// here (spec.md §4.2 step 7).
		next := cur.next

		if !cur.Flags.has(FlagWriteQueued) {
			if firstVisited == nil {
				firstVisited = cur
			}

			eligible := lw.isEligible(cur, remaining, small)
			dispatched := false
			allocFailed := false

			if eligible {
				cur.PagesToWrite = cur.DirtyPages
				if cur.Flags.has(FlagModifiedWriteDisabled) &&
					cur.DirtyPages >= 4*lw.cfg.MaxWriteBehindPages && !small {
					cur.PagesToWrite /= metadataDivisor
				}

				if !alreadyMoved {
					if cur.PagesToWrite >= remaining {
						moveBehind := cur.Flags.has(FlagModifiedWriteDisabled) ||
							(cur == firstVisited && cur.LazyWritePassCount&passCountMask == 0)
						if moveBehind {
							lw.inv.moveCursorAfter(cur)
						} else {
							lw.inv.moveCursorBefore(cur)
						}
						remaining = 0
						alreadyMoved = true
					} else {
						remaining -= cur.PagesToWrite
					}
				}

				dispatched, allocFailed = lw.dispatchFlush(cur)
			}

			if dispatched {
				skipped = 0
			} else {
				skipped++
				if skipped >= lockCourtesy {
					lw.lockCourtesyYield(cur)
					skipped = 0
				}
			}

			if allocFailed {
				break
			}
		}

		if next == start {
			break
		}
		cur = next
	}
}

// dispatchFlush implements spec.md §4.2 step 5. Must be called with the
// master lock held; returns with it held again.
func (lw *LazyWriter) dispatchFlush(s *StreamDescriptor) (dispatched, allocFailed bool) {
	s.Flags |= FlagWriteQueued
	s.biasPin()
	lw.mu.Unlock()

	e, err := lw.entries.alloc(JobWriteBehind)

	lw.mu.Lock()
	if err != nil {
		s.Flags &^= FlagWriteQueued
		s.unbiasPin()
		return false, true
	}
	s.unbiasPin()
	e.Stream = s
	express := s.Flags.has(FlagWaitingForTeardown)
	lw.mu.Unlock()

	target := &lw.pool.queues.regular
	if express {
		target = &lw.pool.queues.express
	}
	lw.pool.postWorkQueue(e, target)

	lw.mu.Lock()
	return true, false
}

// lockCourtesyYield implements spec.md §4.2 step 6: release the master
// lock briefly so other contenders get a window, without otherwise
// disturbing s. Must be called with, and returns with, the lock held.
func (lw *LazyWriter) lockCourtesyYield(s *StreamDescriptor) {
	s.biasPin()
	lw.mu.Unlock()
	runtime.Gosched()
	lw.mu.Lock()
	s.unbiasPin()
}
