package binding

import (
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/backkem/matter-binding/pkg/fabric"
	"github.com/backkem/matter-binding/pkg/storage"
	"github.com/pion/logging"
)

// Capacity defaults.
const (
	// DefaultEntriesPerFabric is the default number of bindings per fabric.
	DefaultEntriesPerFabric = 8

	// MaxCapacity is the largest table size whose slot indices stay below
	// NullIndex.
	MaxCapacity = int(NullIndex) - 1
)

// State is the lifecycle state of a Table.
type State int

// Table states.
const (
	// StateUninitialized means no storage is attached.
	StateUninitialized State = iota
	// StateAttached means storage is attached but nothing was loaded. The
	// first mutation loads the persisted chain before writing.
	StateAttached
	// StateReady means the table reflects storage: it was loaded or mutated
	// through the attached storage.
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateAttached:
		return "Attached"
	case StateReady:
		return "Ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// TableConfig configures a binding table.
type TableConfig struct {
	// EntriesPerFabric is the number of bindings budgeted per fabric.
	// Default: DefaultEntriesPerFabric.
	EntriesPerFabric int

	// MaxFabrics is the number of fabrics the node supports.
	// Default: fabric.DefaultSupportedFabrics.
	MaxFabrics int

	// EnforceFabricQuota makes Add reject a fabric's binding beyond
	// EntriesPerFabric, even when other slots are free.
	EnforceFabricQuota bool

	// Keys names the persisted records. Default: storage.DefaultKeyAllocator.
	Keys storage.KeyAllocator

	// LoggerFactory for table logs. Nil disables logging.
	LoggerFactory logging.LoggerFactory
}

// DefaultTableConfig returns a TableConfig with default values.
func DefaultTableConfig() TableConfig {
	return TableConfig{
		EntriesPerFabric: DefaultEntriesPerFabric,
		MaxFabrics:       fabric.DefaultSupportedFabrics,
		Keys:             storage.DefaultKeyAllocator{},
	}
}

// Capacity returns EntriesPerFabric * MaxFabrics after defaults are applied.
func (c TableConfig) Capacity() int {
	c = c.withDefaults()
	return c.EntriesPerFabric * c.MaxFabrics
}

func (c TableConfig) withDefaults() TableConfig {
	if c.EntriesPerFabric == 0 {
		c.EntriesPerFabric = DefaultEntriesPerFabric
	}
	if c.MaxFabrics == 0 {
		c.MaxFabrics = fabric.DefaultSupportedFabrics
	}
	if c.Keys == nil {
		c.Keys = storage.DefaultKeyAllocator{}
	}
	return c
}

// Validate checks that the capacity is within [1, MaxCapacity].
func (c TableConfig) Validate() error {
	c = c.withDefaults()
	if c.EntriesPerFabric < 0 || c.MaxFabrics < 0 {
		return fmt.Errorf("%w: negative size", ErrInvalidConfig)
	}
	if c.MaxFabrics > fabric.MaxSupportedFabrics || c.EntriesPerFabric > MaxCapacity {
		return fmt.Errorf("%w: capacity %d*%d exceeds %d", ErrInvalidConfig, c.EntriesPerFabric, c.MaxFabrics, MaxCapacity)
	}
	if n := c.EntriesPerFabric * c.MaxFabrics; n > MaxCapacity {
		return fmt.Errorf("%w: capacity %d exceeds %d", ErrInvalidConfig, n, MaxCapacity)
	}
	return nil
}

// Table is the binding table of a node: a fixed array of slots with the
// occupied ones chained in insertion order, mirrored record by record into
// persistent storage.
//
// Every mutation writes storage before it changes memory, so a failed or
// interrupted write leaves the persisted chain consistent and the in-memory
// table unchanged.
//
// All methods are safe for concurrent use.
type Table struct {
	mu sync.Mutex

	config TableConfig
	keys   storage.KeyAllocator
	store  storage.PersistentStorageDelegate
	state  State

	entries []TableEntry
	next    []optSlot
	head    optSlot
	tail    optSlot
	size    int

	log logging.LeveledLogger
}

// NewTable creates an empty binding table.
func NewTable(config TableConfig) (*Table, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config = config.withDefaults()
	capacity := config.EntriesPerFabric * config.MaxFabrics

	t := &Table{
		config:  config,
		keys:    config.Keys,
		entries: make([]TableEntry, capacity),
		next:    make([]optSlot, capacity),
	}
	if config.LoggerFactory != nil {
		t.log = config.LoggerFactory.NewLogger("binding")
	}
	return t, nil
}

// SetPersistentStorage attaches the storage that backs the table. The
// persisted chain replaces the in-memory entries on LoadFromStorage, or on
// the first Add, RemoveAt or RemoveFabric if LoadFromStorage was not called.
func (t *Table) SetPersistentStorage(store storage.PersistentStorageDelegate) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.store = store
	if store == nil {
		t.state = StateUninitialized
		return
	}
	if t.state == StateUninitialized {
		t.state = StateAttached
	}
}

// State returns the lifecycle state.
func (t *Table) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Size returns the number of occupied slots.
func (t *Table) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.size
}

// Capacity returns the number of slots.
func (t *Table) Capacity() int {
	return len(t.entries)
}

// Add stores entry in the lowest free slot and appends it to the chain.
//
// The entry record is written first, then the link to it (the old tail's
// record, or the list-info record for an empty table). Memory is updated only
// after both writes succeed. If linking fails the orphan record is deleted
// and the error is returned.
func (t *Table) Add(entry TableEntry) error {
	if entry.Type() == EntryTypeUnused || !entry.FabricIndex.IsValid() {
		return ErrInvalidEntry
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.store == nil {
		return ErrStorageNotSet
	}
	if err := t.loadIfAttached(); err != nil {
		return err
	}
	idx, ok := t.freeSlot()
	if !ok {
		return ErrTableFull
	}
	if t.config.EnforceFabricQuota && t.countForFabric(entry.FabricIndex) >= t.config.EntriesPerFabric {
		return ErrFabricQuotaExceeded
	}

	entry = entry.clone()
	if err := t.saveEntry(idx, entry, noSlot); err != nil {
		return err
	}

	var err error
	if t.tail.ok {
		err = t.saveEntry(t.tail.index, t.entries[t.tail.index], slotAt(idx))
	} else {
		err = t.saveListInfo(slotAt(idx))
	}
	if err != nil {
		t.deleteRecord(idx)
		return err
	}

	t.entries[idx] = entry
	t.next[idx] = noSlot
	if t.tail.ok {
		t.next[t.tail.index] = slotAt(idx)
	} else {
		t.head = slotAt(idx)
	}
	t.tail = slotAt(idx)
	t.size++
	t.state = StateReady

	if t.log != nil {
		t.log.Debugf("added binding %d: %v", idx, entry)
	}
	return nil
}

// GetAt returns a copy of the entry in slot index.
func (t *Table) GetAt(index int) (TableEntry, error) {
	if index < 0 || index >= len(t.entries) {
		return TableEntry{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entries[index]
	if e.Type() == EntryTypeUnused {
		return TableEntry{}, fmt.Errorf("%w: slot %d", ErrEntryNotFound, index)
	}
	return e.clone(), nil
}

// Begin returns an iterator positioned at the oldest entry.
func (t *Table) Begin() *Iterator {
	t.mu.Lock()
	defer t.mu.Unlock()
	return &Iterator{table: t, cur: t.head}
}

// RemoveAt removes the entry under it and advances it to the successor.
//
// The predecessor's link (or the list-info head) is persisted first, then
// memory is unlinked and the slot's record is deleted. A failed delete only
// leaves an unreachable record behind and is logged. On any other error the
// table and the iterator are unchanged.
func (t *Table) RemoveAt(it *Iterator) error {
	if it == nil || it.table != t {
		return ErrInvalidIterator
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.store == nil {
		return ErrStorageNotSet
	}
	if err := t.loadIfAttached(); err != nil {
		return err
	}
	if !t.linked(it.prev, it.cur) {
		return ErrInvalidIterator
	}

	succ, err := t.remove(it.prev, it.cur.index)
	if err != nil {
		return err
	}
	it.cur = succ
	return nil
}

// linked reports whether cur is an occupied slot directly after prev.
func (t *Table) linked(prev, cur optSlot) bool {
	if !cur.ok || int(cur.index) >= len(t.entries) {
		return false
	}
	if t.entries[cur.index].Type() == EntryTypeUnused {
		return false
	}
	if prev.ok {
		return t.next[prev.index] == cur
	}
	return t.head == cur
}

// remove unlinks slot cur, whose predecessor is prev, and returns its
// successor. The caller holds t.mu.
func (t *Table) remove(prev optSlot, cur uint8) (optSlot, error) {
	succ := t.next[cur]

	var err error
	if prev.ok {
		err = t.saveEntry(prev.index, t.entries[prev.index], succ)
	} else {
		err = t.saveListInfo(succ)
	}
	if err != nil {
		return noSlot, err
	}

	if prev.ok {
		t.next[prev.index] = succ
	} else {
		t.head = succ
	}
	if t.tail == slotAt(cur) {
		t.tail = prev
	}

	t.deleteRecord(cur)

	if t.log != nil {
		t.log.Debugf("removed binding %d: %v", cur, t.entries[cur])
	}
	t.entries[cur] = TableEntry{}
	t.next[cur] = noSlot
	t.size--
	t.state = StateReady
	return succ, nil
}

// RemoveFabric removes every binding owned by fabricIndex and returns how
// many were removed. It stops at the first storage error; entries removed
// before it stay removed.
func (t *Table) RemoveFabric(fabricIndex fabric.FabricIndex) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.store == nil {
		return 0, ErrStorageNotSet
	}
	if err := t.loadIfAttached(); err != nil {
		return 0, err
	}

	removed := 0
	prev, cur := noSlot, t.head
	for cur.ok {
		if t.entries[cur.index].FabricIndex != fabricIndex {
			prev, cur = cur, t.next[cur.index]
			continue
		}
		succ, err := t.remove(prev, cur.index)
		if err != nil {
			return removed, err
		}
		removed++
		cur = succ
	}

	if removed > 0 && t.log != nil {
		t.log.Infof("removed %d bindings of %v", removed, fabricIndex)
	}
	return removed, nil
}

// Entries returns copies of all entries in chain order.
func (t *Table) Entries() []TableEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]TableEntry, 0, t.size)
	for cur := t.head; cur.ok; cur = t.next[cur.index] {
		out = append(out, t.entries[cur.index].clone())
	}
	return out
}

// All iterates over a snapshot of slot indices and entries in chain order.
// The table may be mutated while iterating.
func (t *Table) All() iter.Seq2[int, TableEntry] {
	t.mu.Lock()
	indices := make([]int, 0, t.size)
	entries := make([]TableEntry, 0, t.size)
	for cur := t.head; cur.ok; cur = t.next[cur.index] {
		indices = append(indices, int(cur.index))
		entries = append(entries, t.entries[cur.index].clone())
	}
	t.mu.Unlock()

	return func(yield func(int, TableEntry) bool) {
		for i := range indices {
			if !yield(indices[i], entries[i]) {
				return
			}
		}
	}
}

// Find returns the slot index of the first entry Equal to entry.
func (t *Table) Find(entry TableEntry) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for cur := t.head; cur.ok; cur = t.next[cur.index] {
		if t.entries[cur.index].Equal(entry) {
			return int(cur.index), true
		}
	}
	return -1, false
}

// CountForFabric returns the number of bindings owned by fabricIndex.
func (t *Table) CountForFabric(fabricIndex fabric.FabricIndex) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.countForFabric(fabricIndex)
}

func (t *Table) countForFabric(fabricIndex fabric.FabricIndex) int {
	n := 0
	for cur := t.head; cur.ok; cur = t.next[cur.index] {
		if t.entries[cur.index].FabricIndex == fabricIndex {
			n++
		}
	}
	return n
}

// LoadFromStorage replaces the in-memory table with the persisted chain.
//
// A missing list-info record yields an empty table. If the list-info
// version is unknown, a record is missing or malformed, or the chain
// revisits a slot, the table is left empty, the failure is logged, and the
// error is returned. The table is usable either way.
func (t *Table) LoadFromStorage() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.store == nil {
		return ErrStorageNotSet
	}

	t.reset()
	err := t.load()
	if err != nil {
		t.reset()
		if t.log != nil {
			t.log.Errorf("failed to load binding table, starting empty: %v", err)
		}
	} else if t.log != nil {
		t.log.Infof("loaded %d bindings", t.size)
	}
	t.state = StateReady
	return err
}

// loadIfAttached loads the persisted chain when storage was attached but
// never loaded, so that a mutation extends the stored table instead of
// replacing it. On failure the state stays Attached and nothing is written;
// an explicit LoadFromStorage is needed to start over from an empty table.
func (t *Table) loadIfAttached() error {
	if t.state != StateAttached {
		return nil
	}
	t.reset()
	if err := t.load(); err != nil {
		t.reset()
		if t.log != nil {
			t.log.Errorf("failed to load binding table before writing: %v", err)
		}
		return err
	}
	t.state = StateReady
	if t.log != nil {
		t.log.Infof("loaded %d bindings before first change", t.size)
	}
	return nil
}

func (t *Table) reset() {
	clear(t.entries)
	clear(t.next)
	t.head = noSlot
	t.tail = noSlot
	t.size = 0
}

func (t *Table) load() error {
	raw, err := t.store.SyncGetKeyValue(t.keys.BindingTable())
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("binding: read list info: %w", err)
	}
	cur, err := decodeListInfo(raw)
	if err != nil {
		return err
	}

	visited := make([]bool, len(t.entries))
	for cur.ok {
		i := cur.index
		if int(i) >= len(t.entries) {
			return fmt.Errorf("%w: slot %d beyond capacity %d", ErrCorruptStorage, i, len(t.entries))
		}
		if visited[i] {
			return fmt.Errorf("%w: chain revisits slot %d", ErrCorruptStorage, i)
		}
		visited[i] = true

		raw, err := t.store.SyncGetKeyValue(t.keys.BindingTableEntry(i))
		if errors.Is(err, storage.ErrKeyNotFound) {
			return fmt.Errorf("%w: missing record for slot %d", ErrCorruptStorage, i)
		}
		if err != nil {
			return fmt.Errorf("binding: read slot %d: %w", i, err)
		}
		entry, next, err := decodeEntry(raw)
		if err != nil {
			return fmt.Errorf("binding: decode slot %d: %w", i, err)
		}

		t.entries[i] = entry
		t.next[i] = noSlot
		if t.tail.ok {
			t.next[t.tail.index] = cur
		} else {
			t.head = cur
		}
		t.tail = cur
		t.size++
		cur = next
	}
	return nil
}

// freeSlot returns the lowest unused slot.
func (t *Table) freeSlot() (uint8, bool) {
	if t.size >= len(t.entries) {
		return 0, false
	}
	for i, e := range t.entries {
		if e.Type() == EntryTypeUnused {
			return uint8(i), true
		}
	}
	return 0, false
}

func (t *Table) saveEntry(idx uint8, entry TableEntry, next optSlot) error {
	b, err := encodeEntry(entry, next)
	if err != nil {
		return err
	}
	if err := t.store.SyncSetKeyValue(t.keys.BindingTableEntry(idx), b); err != nil {
		return fmt.Errorf("binding: write slot %d: %w", idx, err)
	}
	return nil
}

func (t *Table) saveListInfo(head optSlot) error {
	b, err := encodeListInfo(head)
	if err != nil {
		return err
	}
	if err := t.store.SyncSetKeyValue(t.keys.BindingTable(), b); err != nil {
		return fmt.Errorf("binding: write list info: %w", err)
	}
	return nil
}

// deleteRecord removes a slot's record. The record is unreachable from the
// persisted chain by now, so failures are only logged.
func (t *Table) deleteRecord(idx uint8) {
	err := t.store.SyncDeleteKeyValue(t.keys.BindingTableEntry(idx))
	if err != nil && !errors.Is(err, storage.ErrKeyNotFound) && t.log != nil {
		t.log.Warnf("failed to delete record of slot %d: %v", idx, err)
	}
}
