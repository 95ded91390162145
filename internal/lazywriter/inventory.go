package lazywriter

// inventory is the circular doubly linked list of cached streams that
// currently have dirty pages or pending teardown, plus the embedded
// cursor sentinel that marks where the next scan resumes. All mutation
// happens under the owning LazyWriter's master lock; inventory itself
// holds no lock of its own (the caller's lock is the invariant boundary,
// matching spec.md §4.5).
type inventory struct {
	cursor *StreamDescriptor
}

// newInventory builds an empty inventory: a single-node circular list
// containing only the cursor.
func newInventory() *inventory {
	c := &StreamDescriptor{Flags: FlagIsCursor}
	c.next, c.prev = c, c
	return &inventory{cursor: c}
}

// insert adds s to the list immediately before the cursor (i.e. at the
// "end" of the traversal order, so freshly-dirtied streams are visited
// after everything already queued ahead of the cursor).
func (inv *inventory) insert(s *StreamDescriptor) {
	c := inv.cursor
	s.prev = c.prev
	s.next = c
	c.prev.next = s
	c.prev = s
}

// remove unlinks s from the list. s must not be the cursor.
func (inv *inventory) remove(s *StreamDescriptor) {
	if s.Flags.has(FlagIsCursor) {
		return
	}
	s.prev.next = s.next
	s.next.prev = s.prev
	s.next, s.prev = nil, nil
}

// moveCursorBefore splices the cursor out of its current position and
// re-links it immediately before s. Next tick's scan therefore resumes on
// s itself.
func (inv *inventory) moveCursorBefore(s *StreamDescriptor) {
	c := inv.cursor
	if c == s {
		return
	}
	// unlink cursor
	c.prev.next = c.next
	c.next.prev = c.prev
	// relink before s
	c.prev = s.prev
	c.next = s
	s.prev.next = c
	s.prev = c
}

// moveCursorAfter splices the cursor immediately after s. Next tick's
// scan resumes on s's successor.
func (inv *inventory) moveCursorAfter(s *StreamDescriptor) {
	inv.moveCursorBefore(s.next)
}

// startPoint returns the node the scan should begin inspecting: the node
// immediately after the cursor.
func (inv *inventory) startPoint() *StreamDescriptor {
	return inv.cursor.next
}

// empty reports whether the list holds only the cursor.
func (inv *inventory) empty() bool {
	return inv.cursor.next == inv.cursor
}
