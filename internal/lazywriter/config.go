package lazywriter

import "time"

// Tunables collects every constant spec.md §6 names. Values mirror the
// magnitudes the spec gives for the original ("~1 s" idle delay, "8-ish"
// age target, and so on); internal/config loads these from the
// environment the way the teacher's internal/config/config.go loads
// application settings, with the same defaults-unless-overridden shape.
type Tunables struct {
	// FirstDelay is how long a freshly-armed (not already active) scan
	// waits before its first tick, giving a save burst time to finish.
	FirstDelay time.Duration
	// IdleDelay is how long an already-active scan waits between ticks
	// when there was nothing urgent to do.
	IdleDelay time.Duration

	// DirtyPageTarget is the steady-state dirty-page count the budget
	// computation aims to land on.
	DirtyPageTarget int64
	// MaxWriteBehindPages is the collaborator's per-call write-behind
	// ceiling; 4x this is the "oversized metadata" threshold.
	MaxWriteBehindPages int64
	// SmallSystemThreshold: when the process's total dirty-page ceiling
	// is at or below this, the system is considered "small" and the
	// pass-gate throttle on MODIFIED_WRITE_DISABLED streams is bypassed.
	SmallSystemThreshold int64

	// WorkerCount sizes the fixed worker pool.
	WorkerCount int
	// EntryCapacity sizes the work-queue entry arena.
	EntryCapacity int
}

const (
	passCountMask   = 0xF
	lockCourtesy    = 20
	ageTarget       = 8
	metadataDivisor = 8
)

// DefaultTunables returns the defaults used when internal/config does not
// override a value.
func DefaultTunables() Tunables {
	return Tunables{
		FirstDelay:           7 * time.Second,
		IdleDelay:            time.Second,
		DirtyPageTarget:      1 << 16,
		MaxWriteBehindPages:  256,
		SmallSystemThreshold: 1 << 12,
		WorkerCount:          4,
		EntryCapacity:        4096,
	}
}
