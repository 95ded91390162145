package lazywriter

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestJobKind_String(t *testing.T) {
	cases := []struct {
		kind JobKind
		want string
	}{
		{JobReadAhead, "ReadAhead"},
		{JobWriteBehind, "WriteBehind"},
		{JobEventSet, "EventSet"},
		{JobLazyWriteScan, "LazyWriteScan"},
		{JobKind(99), "Unknown"},
	}
	for _, c := range cases {
		if got := c.kind.String(); got != c.want {
			t.Errorf("JobKind(%d).String() = %q, want %q", c.kind, got, c.want)
		}
	}
}

func TestEntryPool_allocFreeRoundTrips(t *testing.T) {
	p := newEntryPool(2)

	e1, err := p.alloc(JobWriteBehind)
	if err != nil {
		t.Fatalf("alloc() err = %v", err)
	}
	if e1.Kind != JobWriteBehind {
		t.Errorf("Kind = %v, want JobWriteBehind", e1.Kind)
	}

	e2, err := p.alloc(JobReadAhead)
	if err != nil {
		t.Fatalf("alloc() err = %v", err)
	}

	if _, err := p.alloc(JobReadAhead); !errors.Is(err, ErrNoCapacity) {
		t.Fatalf("alloc() on exhausted pool err = %v, want ErrNoCapacity", err)
	}

	p.free(e1)
	e3, err := p.alloc(JobEventSet)
	if err != nil {
		t.Fatalf("alloc() after free err = %v", err)
	}
	if e3.Stream != nil || e3.File != nil || e3.Event != nil {
		t.Error("alloc() should return a zeroed entry, reused pool slot kept stale fields")
	}

	p.free(e2)
	p.free(e3)
}

func TestEntryPool_allocAssignsDistinctIDs(t *testing.T) {
	p := newEntryPool(2)
	e1, _ := p.alloc(JobReadAhead)
	e2, _ := p.alloc(JobReadAhead)
	if e1.ID == e2.ID {
		t.Error("two allocations from the same pool produced the same ID")
	}
}

func TestLane_pushBackPopFrontFIFO(t *testing.T) {
	var l lane
	a := &entry{ID: uuid.UUID{1}}
	b := &entry{ID: uuid.UUID{2}}
	l.pushBack(a)
	l.pushBack(b)

	if l.len() != 2 {
		t.Fatalf("len() = %d, want 2", l.len())
	}
	if got := l.popFront(); got != a {
		t.Error("popFront() should return a first (FIFO)")
	}
	if got := l.popFront(); got != b {
		t.Error("popFront() should return b second")
	}
	if got := l.popFront(); got != nil {
		t.Error("popFront() on empty lane should return nil")
	}
}

func TestLane_drainInto(t *testing.T) {
	var src, dst lane
	a := &entry{ID: uuid.UUID{1}}
	b := &entry{ID: uuid.UUID{2}}
	dst.pushBack(a)
	src.pushBack(b)

	src.drainInto(&dst)

	if src.len() != 0 {
		t.Errorf("src.len() after drainInto = %d, want 0", src.len())
	}
	if dst.len() != 2 {
		t.Fatalf("dst.len() after drainInto = %d, want 2", dst.len())
	}
	if dst.items[0] != a || dst.items[1] != b {
		t.Error("drainInto should append src's items after dst's existing items, in order")
	}
}
