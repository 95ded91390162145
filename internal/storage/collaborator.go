package storage

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/eargollo/lazywriter/internal/lazywriter"
)

// File is the demo FileRef: a named, sized backing file the collaborator
// pretends to flush pages to. cmd/lazywriterd registers one per stream it
// hands to the lazy writer.
type File struct {
	ID   uuid.UUID
	Path string
	Size int64
}

// Collaborator is a demo lazywriter.Collaborator backed by a Store: every
// WriteBehind call records one flush row, gated by a token-bucket limiter
// the way the teacher's internal/hash/run.go throttles its hashing
// workers with golang.org/x/time/rate.
type Collaborator struct {
	store   *Store
	limiter *rate.Limiter

	// owner is the LazyWriter this Collaborator was handed to. DirtyPages
	// is master-lock-guarded state (stream.go); WriteBehind must report
	// completed writes through owner.MarkDirty rather than touch it
	// directly. Set once via SetOwner, after lazywriter.New(c, ...)
	// constructs the LazyWriter that owns this Collaborator.
	owner *lazywriter.LazyWriter

	mu       sync.Mutex
	deferred map[*lazywriter.StreamDescriptor]struct{}
}

// NewCollaborator builds a Collaborator over store. pagesPerSecond and
// burst configure the admission limiter CanIWrite consults; pass 0 for
// pagesPerSecond to admit every write unconditionally. Call SetOwner
// before starting the lazy writer.
func NewCollaborator(store *Store, pagesPerSecond float64, burst int) *Collaborator {
	c := &Collaborator{
		store:    store,
		deferred: make(map[*lazywriter.StreamDescriptor]struct{}),
	}
	if pagesPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(pagesPerSecond), burst)
	}
	return c
}

// SetOwner wires lw as the LazyWriter this Collaborator serves. The two
// are built in two steps (lazywriter.New takes a Collaborator as an
// argument, so the Collaborator can't hold its owner at construction
// time); WriteBehind panics if called before this is set.
func (c *Collaborator) SetOwner(lw *lazywriter.LazyWriter) {
	c.owner = lw
}

// WriteBehind flushes s's dirty pages by recording a flush row keyed on
// the backing File's ID, then reports the pages actually written back to
// the owning LazyWriter via MarkDirty.
func (c *Collaborator) WriteBehind(ctx context.Context, s lazywriter.StreamRef) (lazywriter.IOStatus, error) {
	f, ok := s.File.(*File)
	if !ok || f == nil {
		return lazywriter.IOStatus{}, fmt.Errorf("storage: stream has no backing file")
	}

	pages := s.PagesToWrite
	if pages <= 0 {
		pages = s.DirtyPages
	}

	if err := c.store.recordFlush(ctx, f.ID.String(), pages); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return lazywriter.IOStatus{}, ctxErr
		}
		return lazywriter.IOStatus{}, err
	}

	log.Printf("lazywriter: flushed %s pages=%d (%s) to %s",
		humanize.Comma(pages), pages, humanize.Bytes(uint64(pages)*4096), f.Path)

	c.owner.MarkDirty(s, -pages)
	c.removeDeferred(s)
	return lazywriter.IOStatus{Success: true}, nil
}

// PerformReadAhead is a no-op in the demo collaborator; a real cache
// manager would stage pages into the cache here.
func (c *Collaborator) PerformReadAhead(ctx context.Context, f lazywriter.FileRef) error {
	return nil
}

// PostDeferredWrites is a no-op notification hook; the demo collaborator
// has nothing asynchronous to nudge.
func (c *Collaborator) PostDeferredWrites() {}

// DeferredWritesPending reports whether any stream is currently held in
// the deferred set (added via Defer, cleared on a successful WriteBehind).
func (c *Collaborator) DeferredWritesPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.deferred) > 0
}

// Defer marks s as having deferred writes outstanding, for demos and
// tests that want to exercise the quiescence path.
func (c *Collaborator) Defer(s lazywriter.StreamRef) {
	c.mu.Lock()
	c.deferred[s] = struct{}{}
	c.mu.Unlock()
}

func (c *Collaborator) removeDeferred(s lazywriter.StreamRef) {
	c.mu.Lock()
	delete(c.deferred, s)
	c.mu.Unlock()
}

// CanIWrite consults the token-bucket limiter, if configured, admitting
// threshold pages worth of write. The lazy writer always passes wait as
// false, so this never blocks; a false result reports back-pressure,
// which makes the lazy writer flush an open temporary file now.
func (c *Collaborator) CanIWrite(f lazywriter.FileRef, threshold int, wait bool, retryPriority int) bool {
	if c.limiter == nil {
		return true
	}
	return c.limiter.AllowN(time.Now(), threshold)
}
