package lazywriter

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrNoCapacity is returned by the entry pool when no work-queue entry can
// be allocated. Every caller treats this the way spec.md §7 prescribes:
// undo whatever was pinned, and let a later tick or call retry.
var ErrNoCapacity = errors.New("lazywriter: no work-queue entry capacity")

// JobKind tags a work-queue entry's payload.
type JobKind int

const (
	JobReadAhead JobKind = iota
	JobWriteBehind
	JobEventSet
	JobLazyWriteScan
)

func (k JobKind) String() string {
	switch k {
	case JobReadAhead:
		return "ReadAhead"
	case JobWriteBehind:
		return "WriteBehind"
	case JobEventSet:
		return "EventSet"
	case JobLazyWriteScan:
		return "LazyWriteScan"
	default:
		return "Unknown"
	}
}

// entry is a tagged work-queue record. Payload is whichever of Stream,
// File, or Event applies to Kind.
type entry struct {
	ID    uuid.UUID
	Kind  JobKind
	Stream StreamRef
	File  FileRef
	Event chan struct{}
}

// entryPool allocates and frees entries from a fixed-capacity arena so
// that allocation failure — a first-class case in spec.md §7 — is a real,
// exercisable condition rather than something Go's allocator hides.
type entryPool struct {
	tickets chan struct{}
	pool    sync.Pool
}

func newEntryPool(capacity int) *entryPool {
	p := &entryPool{tickets: make(chan struct{}, capacity)}
	for i := 0; i < capacity; i++ {
		p.tickets <- struct{}{}
	}
	p.pool.New = func() any { return &entry{} }
	return p
}

// alloc returns a zeroed entry of the given kind, or ErrNoCapacity if the
// pool is exhausted.
func (p *entryPool) alloc(kind JobKind) (*entry, error) {
	select {
	case <-p.tickets:
	default:
		return nil, ErrNoCapacity
	}
	e := p.pool.Get().(*entry)
	*e = entry{ID: uuid.New(), Kind: kind}
	return e, nil
}

// free returns e to the pool for reuse.
func (p *entryPool) free(e *entry) {
	p.pool.Put(e)
	p.tickets <- struct{}{}
}

// lane is a single FIFO of entries with no lock of its own. The worker
// pool's lock guards the express and regular lanes together, matching
// spec.md §5's "work-queue lock protects both queues"; the post-tick lane
// is guarded by the master lock instead — see workQueues below.
type lane struct {
	items []*entry
}

func (l *lane) pushBack(e *entry) { l.items = append(l.items, e) }
func (l *lane) peek() *entry {
	if len(l.items) == 0 {
		return nil
	}
	return l.items[0]
}
func (l *lane) popFront() *entry {
	if len(l.items) == 0 {
		return nil
	}
	e := l.items[0]
	l.items = l.items[1:]
	return e
}
func (l *lane) len() int { return len(l.items) }

// drainInto moves every item of l onto the tail of dst, in order, leaving
// l empty. Used to splice post-tick barrier entries into regular at the
// end of a scan.
func (l *lane) drainInto(dst *lane) {
	dst.items = append(dst.items, l.items...)
	l.items = nil
}

// workQueues holds the express and regular lanes, both guarded by the
// worker pool's work-queue lock. The third lane from spec.md §3,
// post-tick, is a staging area filled under the *master* lock (it is
// populated by WaitForCurrentActivity, which runs concurrently with
// inventory mutation) and so lives on LazyWriter itself, not here; see
// lazywriter.go's postTick field.
type workQueues struct {
	express lane
	regular lane
}
