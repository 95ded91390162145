// Package lazywriter implements the cache manager's background flush
// engine: a timer-driven scan over a dirty-stream inventory, dispatching
// write-behind work to a two-priority worker pool, with a barrier
// primitive callers use to wait for outstanding work to drain.
package lazywriter

import "context"

// StreamRef identifies a cached stream to a Collaborator. The lazy writer
// never interprets it; it is opaque payload carried on work-queue entries.
type StreamRef = *StreamDescriptor

// FileRef identifies a file for read-ahead. Opaque to this package.
type FileRef interface{}

// IOStatus is the result of a WriteBehind call.
type IOStatus struct {
	// Success is true when the write-behind completed without error.
	Success bool
	// Requeue, when true, means the collaborator wants this same stream
	// dispatched again rather than considered complete (CC_REQUEUE).
	Requeue bool
}

// Collaborator is the set of operations the lazy writer consumes from the
// surrounding cache manager. Implementations perform the actual I/O; the
// lazy writer only decides what to flush and when.
type Collaborator interface {
	// WriteBehind flushes S's dirty pages. The returned IOStatus.Requeue
	// tells the worker pool to re-run this same job; otherwise the job is
	// considered complete (success or not).
	WriteBehind(ctx context.Context, s StreamRef) (IOStatus, error)

	// PerformReadAhead services a ReadAhead work item.
	PerformReadAhead(ctx context.Context, f FileRef) error

	// PostDeferredWrites nudges the collaborator's deferred-write list.
	// Safe to call redundantly; must never block.
	PostDeferredWrites()

	// DeferredWritesPending reports whether the collaborator currently has
	// deferred writes outstanding (used by the quiescence test and by the
	// worker-pool's tail-of-drain rescan kick).
	DeferredWritesPending() bool

	// CanIWrite reports whether a charged write against f may be admitted
	// right now. threshold is a byte/page budget, wait says whether the
	// caller would be willing to block for admission (the lazy writer
	// always passes false — it never blocks on this call), retryPriority
	// is an opaque priority hint passed through to the collaborator.
	CanIWrite(f FileRef, threshold int, wait bool, retryPriority int) bool
}
