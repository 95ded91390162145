package lazywriter

import (
	"context"
	"sync"
)

// fakeCollaborator is a minimal, mutex-guarded Collaborator test double.
// writeBehindFunc, when set, overrides the default always-succeed
// behavior so tests can exercise requeue and error paths; setting
// canIWrite to false exercises CanIWrite denial.
type fakeCollaborator struct {
	mu sync.Mutex

	writeCalls       int
	readCalls        int
	postDeferredCalls int

	writeBehindFunc func(s StreamRef) (IOStatus, error)
	canIWrite       bool
	deferredPending bool
}

func newFakeCollaborator() *fakeCollaborator {
	return &fakeCollaborator{canIWrite: true}
}

func (f *fakeCollaborator) WriteBehind(ctx context.Context, s StreamRef) (IOStatus, error) {
	f.mu.Lock()
	f.writeCalls++
	fn := f.writeBehindFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(s)
	}
	s.DirtyPages = 0
	return IOStatus{Success: true}, nil
}

func (f *fakeCollaborator) PerformReadAhead(ctx context.Context, file FileRef) error {
	f.mu.Lock()
	f.readCalls++
	f.mu.Unlock()
	return nil
}

func (f *fakeCollaborator) PostDeferredWrites() {
	f.mu.Lock()
	f.postDeferredCalls++
	f.mu.Unlock()
}

func (f *fakeCollaborator) DeferredWritesPending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deferredPending
}

func (f *fakeCollaborator) CanIWrite(file FileRef, threshold int, wait bool, retryPriority int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canIWrite
}

func (f *fakeCollaborator) writeCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writeCalls
}
