package binding

// Iterator walks the table in chain order, oldest binding first.
//
//	for it := table.Begin(); !it.Done(); {
//		if stale(it.Entry()) {
//			if err := table.RemoveAt(it); err != nil {
//				return err
//			}
//			continue
//		}
//		it.Next()
//	}
//
// RemoveAt advances the iterator itself. Mutating the table through anything
// other than this iterator invalidates it; RemoveAt then fails with
// ErrInvalidIterator.
type Iterator struct {
	table *Table
	prev  optSlot
	cur   optSlot
}

// Done reports whether the iterator is past the last entry.
func (it *Iterator) Done() bool {
	return !it.cur.ok
}

// Next advances to the successor. It is a no-op once Done.
func (it *Iterator) Next() {
	if !it.cur.ok {
		return
	}
	it.table.mu.Lock()
	defer it.table.mu.Unlock()

	it.prev = it.cur
	it.cur = it.table.next[it.cur.index]
}

// Index returns the slot index of the current entry, or -1 once Done.
func (it *Iterator) Index() int {
	if !it.cur.ok {
		return -1
	}
	return int(it.cur.index)
}

// Entry returns a copy of the current entry, or an Unused entry once Done.
func (it *Iterator) Entry() TableEntry {
	if !it.cur.ok {
		return TableEntry{}
	}
	it.table.mu.Lock()
	defer it.table.mu.Unlock()
	return it.table.entries[it.cur.index].clone()
}
