package lazywriter

import "time"

// scheduleScan implements spec.md §4.1. Callers must hold the master
// lock; the scan reschedules itself after a tick through ScheduleScan,
// which takes the lock for it.
//
// Ordering is load-bearing: scanActive is set before the timer is armed,
// so a racing scan goroutine can never observe scanActive=false while a
// tick is in flight.
func (lw *LazyWriter) scheduleScan(fast bool) {
	switch {
	case fast:
		lw.scanActive = true
		lw.armTimer(0)
	case lw.scanActive:
		lw.armTimer(lw.cfg.IdleDelay)
	default:
		lw.scanActive = true
		lw.armTimer(lw.cfg.FirstDelay)
	}
}

// armTimer (re)arms the repeating scan timer. The previous timer, if any,
// is stopped first so at most one is ever pending.
func (lw *LazyWriter) armTimer(delay time.Duration) {
	if lw.timer != nil {
		lw.timer.Stop()
	}
	lw.timer = time.AfterFunc(delay, lw.timerFired)
}

// timerFired is the DPC-equivalent: it runs at "elevated priority" in the
// sense that it does no work beyond posting a job, never blocks, and
// never itself invokes collaborator code (spec.md §4.1, §5).
func (lw *LazyWriter) timerFired() {
	e, err := lw.entries.alloc(JobLazyWriteScan)
	if err != nil {
		lw.mu.Lock()
		lw.scanActive = false
		lw.mu.Unlock()
		return
	}
	lw.pool.postWorkQueue(e, &lw.pool.queues.regular)
}

// ScheduleScan is the external entry point (spec.md §6
// schedule_lazy_write_scan). It takes the master lock itself, so callers,
// including the scan at the end of a tick, must not already hold it.
func (lw *LazyWriter) ScheduleScan(fast bool) {
	lw.mu.Lock()
	lw.scheduleScan(fast)
	lw.mu.Unlock()
}
