package lazywriter

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"
)

// rescanThresholdPages is the dirty-page floor above which a worker that
// just completed a successful write kicks a fresh scan synchronously
// rather than waiting for the next tick, so a newly-unblocked deferred
// writer doesn't sit idle until the timer fires again.
const rescanThresholdPages = 20

// workerPool is the fixed-capacity thread pool that drains the express
// and regular queues, throttling around EventSet barrier entries so they
// are only ever popped by the sole remaining active worker.
type workerPool struct {
	lw *LazyWriter

	mu   sync.Mutex
	cond *sync.Cond

	queues workQueues

	activeWorkerCount int
	idleWorkerCount   int
	queueThrottle     bool

	group  *errgroup.Group
	cancel context.CancelFunc
}

func newWorkerPool(lw *LazyWriter) *workerPool {
	p := &workerPool{lw: lw}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// start launches n worker goroutines under an errgroup, replacing the
// hand-rolled WaitGroup+error-channel shape the teacher writes out by hand
// in internal/hash/run.go's producer-consumer loop.
func (p *workerPool) start(ctx context.Context, n int) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	g, gctx := errgroup.WithContext(ctx)
	p.group = g
	p.mu.Lock()
	p.activeWorkerCount = n
	p.mu.Unlock()
	for i := 0; i < n; i++ {
		id := i
		g.Go(func() error {
			p.workerLoop(gctx, id)
			return nil
		})
	}
}

// stop cancels all workers and waits for them to exit.
func (p *workerPool) stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.mu.Lock()
	p.cond.Broadcast()
	p.mu.Unlock()
	_ = p.group.Wait()
}

// postWorkQueue tail-inserts e into the named lane and, if the pool is
// not throttled and an idle worker exists, wakes the idle workers so one
// can pick it up.
func (p *workerPool) postWorkQueue(e *entry, target *lane) {
	p.mu.Lock()
	target.pushBack(e)
	if !p.queueThrottle && p.idleWorkerCount > 0 {
		p.cond.Broadcast()
	}
	p.mu.Unlock()
}

// workerLoop is the pool thread entry point (spec.md §4.3, §6
// worker_thread). It tolerates racing wakeups: every suspension is a
// condition re-check in a loop, never an edge-triggered signal.
func (p *workerPool) workerLoop(ctx context.Context, id int) {
	var (
		requeueEntry *entry
		requeueLane  *lane
		successfulWrite bool
		privileged      bool
	)

	for {
		p.mu.Lock()

		if requeueEntry != nil {
			requeueLane.pushBack(requeueEntry)
			requeueEntry, requeueLane = nil, nil
		}

		var current *lane
		for {
			if ctx.Err() != nil {
				p.activeWorkerCount--
				p.mu.Unlock()
				p.maybeRescanOnExit(successfulWrite)
				return
			}
			switch {
			case p.queues.express.len() > 0:
				current = &p.queues.express
			case p.queues.regular.len() > 0:
				current = &p.queues.regular
			default:
				current = nil
			}
			if current == nil {
				if successfulWrite {
					successfulWrite = false
					p.mu.Unlock()
					p.maybeRescanOnExit(true)
					p.mu.Lock()
					continue
				}
				p.goIdle()
				continue
			}
			head := current.peek()
			if head.Kind == JobEventSet && p.activeWorkerCount > 1 {
				log.Printf("lazywriter: throttling queue for barrier entry %s", head.ID)
				p.queueThrottle = true
				p.goIdle()
				current = nil
				continue
			}
			break
		}

		e := current.popFront()
		p.mu.Unlock()

		requeue := p.dispatch(ctx, e, &successfulWrite, &privileged)
		if requeue {
			requeueEntry = e
			requeueLane = current
		} else {
			p.lw.entries.free(e)
		}
	}
}

// goIdle must be called with p.mu held. It parks the calling worker on
// the shared condition variable until woken, re-checking state itself on
// return (sync.Cond.Wait already requires the caller to loop).
func (p *workerPool) goIdle() {
	p.activeWorkerCount--
	p.idleWorkerCount++
	p.cond.Broadcast() // may unblock a throttled EventSet waiter
	p.cond.Wait()
	p.idleWorkerCount--
	p.activeWorkerCount++
}

// maybeRescanOnExit implements spec.md §4.3's "as a last action, if
// deferred writes are non-empty and total_dirty_pages >= 20 and the
// worker completed at least one successful write, invoke a fresh scan
// synchronously in this thread." Called both when a worker drains its
// queues to empty (the normal case — a just-completed write may have
// unblocked a deferred writer) and on pool shutdown. Must be called with
// neither lock held: it may itself acquire the master lock and,
// transitively, the work-queue lock, and the two are never held
// together.
func (p *workerPool) maybeRescanOnExit(successfulWrite bool) {
	if !successfulWrite {
		return
	}
	lw := p.lw
	lw.mu.Lock()
	dirty := lw.totalDirtyPages
	lw.mu.Unlock()
	if lw.collab.DeferredWritesPending() && dirty >= rescanThresholdPages {
		lw.runScan(context.Background())
	}
}

// dispatch runs one work-queue entry and reports whether it asked to be
// requeued (CC_REQUEUE).
func (p *workerPool) dispatch(ctx context.Context, e *entry, successfulWrite, privileged *bool) (requeue bool) {
	switch e.Kind {
	case JobReadAhead:
		if err := p.lw.collab.PerformReadAhead(ctx, e.File); err != nil && !isExpected(err) {
			panic(err)
		}
		return false

	case JobWriteBehind:
		*privileged = true
		defer func() { *privileged = false }()
		status, err := p.lw.collab.WriteBehind(ctx, e.Stream)
		if err != nil {
			if !isExpected(err) {
				panic(err)
			}
			*successfulWrite = false
			return false
		}
		*successfulWrite = status.Success
		return status.Requeue

	case JobEventSet:
		close(e.Event)
		p.mu.Lock()
		p.queueThrottle = false
		p.cond.Broadcast()
		p.mu.Unlock()
		return false

	case JobLazyWriteScan:
		p.lw.runScan(ctx)
		return false

	default:
		log.Printf("lazywriter: unknown job kind %v for entry %s", e.Kind, e.ID)
		return false
	}
}
