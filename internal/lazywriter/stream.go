package lazywriter

// StreamFlags is a bit set over a StreamDescriptor's transient state.
type StreamFlags uint32

const (
	// FlagWriteQueued marks a stream as logically owned by some worker or
	// by the scan itself. It doubles as a mutex (no concurrent flush of
	// the same stream) and as a "do not reclaim" marker.
	FlagWriteQueued StreamFlags = 1 << iota
	// FlagModifiedWriteDisabled marks metadata-like streams that must be
	// flushed with exclusive access and are throttled to 1-in-16 ticks.
	FlagModifiedWriteDisabled
	// FlagWaitingForTeardown marks a stream pending close; while it has
	// dirty pages it is always eligible, and it is dispatched to the
	// express queue.
	FlagWaitingForTeardown
	// FlagIsCursor marks the single sentinel node embedded in the
	// inventory. It carries no stream payload.
	FlagIsCursor
	// FlagTemporaryFile marks a stream backed by a temp file, which is
	// normally exempt from eager flushing unless it has no open handles
	// or back-pressure is present.
	FlagTemporaryFile
)

func (f StreamFlags) has(bit StreamFlags) bool { return f&bit != 0 }

// StreamDescriptor is the per-stream state the lazy writer tracks. One
// exists per cached file stream that has ever been dirty; lifetime is
// owned by the surrounding cache manager, referenced weakly here.
type StreamDescriptor struct {
	// File identifies the backing stream to the collaborator. Opaque to
	// this package.
	File FileRef

	// list linkage; guarded by the master lock.
	next, prev *StreamDescriptor

	// DirtyPages is the count of dirty pages attributed to this stream.
	// Mutated under the master lock by the collaborator and by the scan.
	DirtyPages int64

	// PagesToWrite is scratch state the scan writes before dispatching a
	// flush; read by the flush worker.
	PagesToWrite int64

	Flags StreamFlags

	// OpenCount is the number of live user handles. 0 makes the stream a
	// lazy-close candidate.
	OpenCount int64

	FileSize int64

	// LazyWritePassCount is monotone per stream, incremented each time the
	// scan visits it while still looking for eligible pages.
	LazyWritePassCount uint64
}

// biasPin increments DirtyPages by one to pin the descriptor against
// teardown while the master lock is released. Must be paired with
// unbiasPin once the lock is reacquired. Callers must hold the master
// lock when calling this.
func (s *StreamDescriptor) biasPin() { s.DirtyPages++ }

// unbiasPin reverses biasPin. Callers must hold the master lock.
func (s *StreamDescriptor) unbiasPin() { s.DirtyPages-- }
