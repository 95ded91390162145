package lazywriter

import "context"

// WaitForCurrentActivity implements spec.md §4.4 / §6
// wait_for_current_lazy_writer_activity. It returns once every
// WriteBehind entry queued strictly before this call has completed.
//
// Ordering proof (spec.md §5): the event entry is appended to
// post_tick_queue, which the in-flight or next scan drains into the tail
// of regular only after finishing all of its own dispatch; the worker
// pool throttles to a single active worker before it will pop an
// EventSet entry. So the event cannot fire until every WriteBehind posted
// before this call, across every tick up to and including the one this
// call provoked, has drained.
func (lw *LazyWriter) WaitForCurrentActivity(ctx context.Context) error {
	e, err := lw.entries.alloc(JobEventSet)
	if err != nil {
		return ErrNoCapacity
	}
	e.Event = make(chan struct{})

	lw.mu.Lock()
	lw.postTick.pushBack(e)
	lw.otherWork = true
	if !lw.scanActive {
		lw.scheduleScan(true)
	}
	lw.mu.Unlock()

	select {
	case <-e.Event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
