package lazywriter

import "time"

// testTunables returns small, fast tunables so tests don't wait on the
// production-sized delays in DefaultTunables.
func testTunables() Tunables {
	return Tunables{
		FirstDelay:           time.Millisecond,
		IdleDelay:            time.Millisecond,
		DirtyPageTarget:      1 << 16,
		MaxWriteBehindPages:  256,
		SmallSystemThreshold: 1 << 12,
		WorkerCount:          2,
		EntryCapacity:        64,
	}
}

// waitUntil polls cond every 2ms until it returns true or timeout elapses,
// reporting whether cond was ever observed true.
func waitUntil(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
