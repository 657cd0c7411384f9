package binding

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/backkem/matter-binding/pkg/fabric"
	"github.com/backkem/matter-binding/pkg/storage"
	"github.com/google/go-cmp/cmp"
	"github.com/pion/transport/v3/test"
)

func newTestTable(t *testing.T, config TableConfig) (*Table, *storage.MemoryStorage) {
	t.Helper()

	table, err := NewTable(config)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	store := storage.NewMemoryStorage()
	table.SetPersistentStorage(store)
	return table, store
}

func mustAdd(t *testing.T, table *Table, entries ...TableEntry) {
	t.Helper()
	for _, e := range entries {
		if err := table.Add(e); err != nil {
			t.Fatalf("Add(%v) failed: %v", e, err)
		}
	}
}

// collect walks the table with an iterator.
func collect(table *Table) []TableEntry {
	var out []TableEntry
	for it := table.Begin(); !it.Done(); it.Next() {
		out = append(out, it.Entry())
	}
	return out
}

// checkChain verifies the in-memory chain against the slot array.
func checkChain(t *testing.T, table *Table) {
	t.Helper()

	table.mu.Lock()
	defer table.mu.Unlock()

	seen := make(map[uint8]bool)
	last := noSlot
	for cur := table.head; cur.ok; cur = table.next[cur.index] {
		if int(cur.index) >= len(table.entries) {
			t.Fatalf("chain reaches slot %d beyond capacity", cur.index)
		}
		if seen[cur.index] {
			t.Fatalf("chain revisits slot %d", cur.index)
		}
		seen[cur.index] = true
		if table.entries[cur.index].Type() == EntryTypeUnused {
			t.Errorf("chain reaches unused slot %d", cur.index)
		}
		last = cur
	}
	if len(seen) != table.size {
		t.Errorf("chain length %d, size %d", len(seen), table.size)
	}
	if table.tail != last {
		t.Errorf("tail = %+v, last chained slot = %+v", table.tail, last)
	}
	for i, e := range table.entries {
		if !seen[uint8(i)] && e.Type() != EntryTypeUnused {
			t.Errorf("slot %d occupied but not chained", i)
		}
	}
}

var (
	entryA = ForNode(1, 0xAA, 1, 2, nil)
	entryB = ForNode(1, 0xBB, 1, 3, ClusterPtr(0x0006))
	entryC = ForGroup(2, 0x0101, 2, nil)
	entryD = ForNode(2, 0xDD, 4, 1, ClusterPtr(0x0008))
)

func TestNewTable(t *testing.T) {
	t.Run("default config", func(t *testing.T) {
		table, err := NewTable(DefaultTableConfig())
		if err != nil {
			t.Fatalf("NewTable failed: %v", err)
		}
		if want := DefaultEntriesPerFabric * fabric.DefaultSupportedFabrics; table.Capacity() != want {
			t.Errorf("Capacity() = %d, want %d", table.Capacity(), want)
		}
		if table.Size() != 0 {
			t.Errorf("Size() = %d, want 0", table.Size())
		}
		if table.State() != StateUninitialized {
			t.Errorf("State() = %v, want Uninitialized", table.State())
		}
	})

	t.Run("zero config uses defaults", func(t *testing.T) {
		table, err := NewTable(TableConfig{})
		if err != nil {
			t.Fatalf("NewTable failed: %v", err)
		}
		if table.Capacity() != DefaultTableConfig().Capacity() {
			t.Errorf("Capacity() = %d", table.Capacity())
		}
	})

	t.Run("largest capacity", func(t *testing.T) {
		table, err := NewTable(TableConfig{EntriesPerFabric: 127, MaxFabrics: 2})
		if err != nil {
			t.Fatalf("NewTable failed: %v", err)
		}
		if table.Capacity() != MaxCapacity {
			t.Errorf("Capacity() = %d, want %d", table.Capacity(), MaxCapacity)
		}
	})

	invalid := map[string]TableConfig{
		"capacity 255":     {EntriesPerFabric: 51, MaxFabrics: 5},
		"negative":         {EntriesPerFabric: -1, MaxFabrics: 5},
		"too many fabrics": {EntriesPerFabric: 1, MaxFabrics: 255},
		"huge per fabric":  {EntriesPerFabric: 1 << 20, MaxFabrics: 1 << 20},
	}
	for name, config := range invalid {
		t.Run(name, func(t *testing.T) {
			if _, err := NewTable(config); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("NewTable = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestTable_StorageNotSet(t *testing.T) {
	table, err := NewTable(DefaultTableConfig())
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}

	if err := table.Add(entryA); !errors.Is(err, ErrStorageNotSet) {
		t.Errorf("Add = %v, want ErrStorageNotSet", err)
	}
	if err := table.LoadFromStorage(); !errors.Is(err, ErrStorageNotSet) {
		t.Errorf("LoadFromStorage = %v, want ErrStorageNotSet", err)
	}
	if _, err := table.RemoveFabric(1); !errors.Is(err, ErrStorageNotSet) {
		t.Errorf("RemoveFabric = %v, want ErrStorageNotSet", err)
	}
	if table.Size() != 0 {
		t.Errorf("Size() = %d, want 0", table.Size())
	}

	table.SetPersistentStorage(storage.NewMemoryStorage())
	if table.State() != StateAttached {
		t.Errorf("State() = %v, want Attached", table.State())
	}
	mustAdd(t, table, entryA)
	if table.State() != StateReady {
		t.Errorf("State() = %v, want Ready", table.State())
	}

	table.SetPersistentStorage(nil)
	if table.State() != StateUninitialized {
		t.Errorf("State() = %v, want Uninitialized", table.State())
	}
}

func TestTable_AddInvalid(t *testing.T) {
	table, store := newTestTable(t, DefaultTableConfig())

	for _, e := range []TableEntry{{}, {FabricIndex: 1}, ForNode(0, 0xAA, 1, 2, nil)} {
		if err := table.Add(e); !errors.Is(err, ErrInvalidEntry) {
			t.Errorf("Add(%v) = %v, want ErrInvalidEntry", e, err)
		}
	}
	if table.Size() != 0 || store.Len() != 0 {
		t.Errorf("invalid adds changed state: size %d, %d records", table.Size(), store.Len())
	}
}

func TestTable_AddSingle(t *testing.T) {
	table, _ := newTestTable(t, DefaultTableConfig())
	mustAdd(t, table, entryA)

	if table.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", table.Size())
	}
	if diff := cmp.Diff([]TableEntry{entryA}, collect(table)); diff != "" {
		t.Errorf("iteration mismatch (-want +got):\n%s", diff)
	}
	checkChain(t, table)
}

func TestTable_RemoveMiddle(t *testing.T) {
	table, _ := newTestTable(t, DefaultTableConfig())
	mustAdd(t, table, entryA, entryB, entryC)

	it := table.Begin()
	it.Next()
	if !it.Entry().Equal(entryB) {
		t.Fatalf("iterator at %v, want %v", it.Entry(), entryB)
	}
	if err := table.RemoveAt(it); err != nil {
		t.Fatalf("RemoveAt failed: %v", err)
	}
	if !it.Entry().Equal(entryC) {
		t.Errorf("iterator advanced to %v, want %v", it.Entry(), entryC)
	}

	if table.Size() != 2 {
		t.Errorf("Size() = %d, want 2", table.Size())
	}
	if diff := cmp.Diff([]TableEntry{entryA, entryC}, collect(table)); diff != "" {
		t.Errorf("iteration mismatch (-want +got):\n%s", diff)
	}
	checkChain(t, table)
}

func TestTable_Full(t *testing.T) {
	table, _ := newTestTable(t, TableConfig{EntriesPerFabric: 2, MaxFabrics: 2})

	for i := 0; i < table.Capacity(); i++ {
		mustAdd(t, table, ForNode(1, fabric.NodeID(i+1), 1, 1, nil))
	}
	if err := table.Add(entryA); !errors.Is(err, ErrTableFull) {
		t.Fatalf("Add on full table = %v, want ErrTableFull", err)
	}
	if table.Size() != table.Capacity() {
		t.Errorf("Size() = %d, want %d", table.Size(), table.Capacity())
	}
	checkChain(t, table)
}

func TestTable_RemoveLast(t *testing.T) {
	table, store := newTestTable(t, DefaultTableConfig())
	mustAdd(t, table, entryA)

	it := table.Begin()
	if err := table.RemoveAt(it); err != nil {
		t.Fatalf("RemoveAt failed: %v", err)
	}
	if !it.Done() {
		t.Error("iterator not done after removing the sole entry")
	}
	if table.head.ok || table.tail.ok || table.Size() != 0 {
		t.Fatalf("head %+v tail %+v size %d after removing sole entry", table.head, table.tail, table.Size())
	}
	if _, err := store.SyncGetKeyValue("g/bt/0"); !errors.Is(err, storage.ErrKeyNotFound) {
		t.Errorf("record of removed slot still present: %v", err)
	}

	mustAdd(t, table, entryB)
	if table.head != slotAt(0) || table.tail != slotAt(0) {
		t.Errorf("head %+v tail %+v, want slot 0", table.head, table.tail)
	}
	if diff := cmp.Diff([]TableEntry{entryB}, collect(table)); diff != "" {
		t.Errorf("iteration mismatch (-want +got):\n%s", diff)
	}
	checkChain(t, table)
}

func TestTable_ReusesLowestFreeSlot(t *testing.T) {
	table, _ := newTestTable(t, DefaultTableConfig())
	mustAdd(t, table, entryA, entryB, entryC)

	if err := table.RemoveAt(table.Begin()); err != nil {
		t.Fatalf("RemoveAt failed: %v", err)
	}
	mustAdd(t, table, entryD)

	idx, ok := table.Find(entryD)
	if !ok || idx != 0 {
		t.Errorf("Find(D) = %d, %v; want slot 0", idx, ok)
	}
	// Chain order is insertion order, not slot order.
	if diff := cmp.Diff([]TableEntry{entryB, entryC, entryD}, collect(table)); diff != "" {
		t.Errorf("iteration mismatch (-want +got):\n%s", diff)
	}
	checkChain(t, table)
}

func TestTable_GetAt(t *testing.T) {
	table, _ := newTestTable(t, DefaultTableConfig())
	mustAdd(t, table, entryA, entryB)

	got, err := table.GetAt(1)
	if err != nil {
		t.Fatalf("GetAt(1) failed: %v", err)
	}
	if diff := cmp.Diff(entryB, got); diff != "" {
		t.Errorf("GetAt(1) mismatch (-want +got):\n%s", diff)
	}

	// The returned entry is a copy.
	*got.ClusterID = 0xFFFF
	again, _ := table.GetAt(1)
	if *again.ClusterID != 0x0006 {
		t.Error("GetAt result aliases table memory")
	}

	if _, err := table.GetAt(2); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("GetAt(2) = %v, want ErrEntryNotFound", err)
	}
	for _, i := range []int{-1, table.Capacity(), 255} {
		if _, err := table.GetAt(i); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("GetAt(%d) = %v, want ErrIndexOutOfRange", i, err)
		}
	}
}

func TestIterator(t *testing.T) {
	table, _ := newTestTable(t, DefaultTableConfig())

	it := table.Begin()
	if !it.Done() || it.Index() != -1 || it.Entry().Type() != EntryTypeUnused {
		t.Fatal("iterator over empty table is not done")
	}
	it.Next()
	if !it.Done() {
		t.Fatal("Next moved a done iterator")
	}

	mustAdd(t, table, entryA, entryB)
	it = table.Begin()
	if it.Index() != 0 {
		t.Errorf("Index() = %d, want 0", it.Index())
	}
	it.Next()
	if it.Index() != 1 {
		t.Errorf("Index() = %d, want 1", it.Index())
	}
	it.Next()
	if !it.Done() {
		t.Error("iterator not done after last entry")
	}
}

func TestTable_RemoveAtInvalid(t *testing.T) {
	table, _ := newTestTable(t, DefaultTableConfig())
	other, _ := newTestTable(t, DefaultTableConfig())
	mustAdd(t, table, entryA, entryB)
	mustAdd(t, other, entryA)

	t.Run("nil", func(t *testing.T) {
		if err := table.RemoveAt(nil); !errors.Is(err, ErrInvalidIterator) {
			t.Errorf("RemoveAt(nil) = %v", err)
		}
	})

	t.Run("done", func(t *testing.T) {
		it := table.Begin()
		it.Next()
		it.Next()
		if err := table.RemoveAt(it); !errors.Is(err, ErrInvalidIterator) {
			t.Errorf("RemoveAt(done) = %v", err)
		}
	})

	t.Run("other table", func(t *testing.T) {
		if err := table.RemoveAt(other.Begin()); !errors.Is(err, ErrInvalidIterator) {
			t.Errorf("RemoveAt(foreign) = %v", err)
		}
	})

	t.Run("stale", func(t *testing.T) {
		stale := table.Begin()
		stale.Next() // at B, predecessor A
		if err := table.RemoveAt(table.Begin()); err != nil {
			t.Fatalf("RemoveAt failed: %v", err)
		}
		if err := table.RemoveAt(stale); !errors.Is(err, ErrInvalidIterator) {
			t.Errorf("RemoveAt(stale) = %v", err)
		}
		if table.Size() != 1 {
			t.Errorf("Size() = %d, want 1", table.Size())
		}
	})
}

func TestTable_RemoveWhileIterating(t *testing.T) {
	table, _ := newTestTable(t, DefaultTableConfig())
	mustAdd(t, table, entryA, entryC, entryB, entryD)

	for it := table.Begin(); !it.Done(); {
		if it.Entry().FabricIndex == 1 {
			if err := table.RemoveAt(it); err != nil {
				t.Fatalf("RemoveAt failed: %v", err)
			}
			continue
		}
		it.Next()
	}

	if diff := cmp.Diff([]TableEntry{entryC, entryD}, collect(table)); diff != "" {
		t.Errorf("iteration mismatch (-want +got):\n%s", diff)
	}
	checkChain(t, table)
}

func TestTable_RemoveFabric(t *testing.T) {
	table, store := newTestTable(t, DefaultTableConfig())
	mustAdd(t, table, entryA, entryC, entryB, entryD)

	n, err := table.RemoveFabric(2)
	if err != nil {
		t.Fatalf("RemoveFabric failed: %v", err)
	}
	if n != 2 {
		t.Errorf("RemoveFabric removed %d, want 2", n)
	}
	if diff := cmp.Diff([]TableEntry{entryA, entryB}, collect(table)); diff != "" {
		t.Errorf("iteration mismatch (-want +got):\n%s", diff)
	}
	if table.CountForFabric(2) != 0 {
		t.Errorf("CountForFabric(2) = %d", table.CountForFabric(2))
	}
	if got := store.Keys(); !cmp.Equal(got, []string{"g/bt", "g/bt/0", "g/bt/2"}) {
		t.Errorf("persisted keys = %v", got)
	}
	checkChain(t, table)

	n, err = table.RemoveFabric(9)
	if err != nil || n != 0 {
		t.Errorf("RemoveFabric(unknown) = %d, %v", n, err)
	}
}

func TestTable_FabricQuota(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		table, _ := newTestTable(t, TableConfig{EntriesPerFabric: 2, MaxFabrics: 2})
		for i := 0; i < 4; i++ {
			mustAdd(t, table, ForNode(1, fabric.NodeID(i+1), 1, 1, nil))
		}
		if table.CountForFabric(1) != 4 {
			t.Errorf("CountForFabric(1) = %d, want 4", table.CountForFabric(1))
		}
	})

	t.Run("enforced", func(t *testing.T) {
		table, _ := newTestTable(t, TableConfig{EntriesPerFabric: 2, MaxFabrics: 2, EnforceFabricQuota: true})
		mustAdd(t, table, ForNode(1, 1, 1, 1, nil), ForNode(1, 2, 1, 1, nil))
		if err := table.Add(ForNode(1, 3, 1, 1, nil)); !errors.Is(err, ErrFabricQuotaExceeded) {
			t.Fatalf("Add over quota = %v, want ErrFabricQuotaExceeded", err)
		}
		mustAdd(t, table, ForGroup(2, 1, 1, nil))
		if table.Size() != 3 {
			t.Errorf("Size() = %d, want 3", table.Size())
		}
	})
}

func TestTable_FindAndEntries(t *testing.T) {
	table, _ := newTestTable(t, DefaultTableConfig())
	mustAdd(t, table, entryA, entryB)

	if idx, ok := table.Find(ForNode(1, 0xBB, 1, 3, ClusterPtr(0x0006))); !ok || idx != 1 {
		t.Errorf("Find(B) = %d, %v", idx, ok)
	}
	if idx, ok := table.Find(entryC); ok || idx != -1 {
		t.Errorf("Find(C) = %d, %v", idx, ok)
	}

	entries := table.Entries()
	*entries[1].ClusterID = 0x9999
	if diff := cmp.Diff([]TableEntry{entryA, entryB}, table.Entries()); diff != "" {
		t.Errorf("Entries aliases table memory (-want +got):\n%s", diff)
	}
}

func TestTable_All(t *testing.T) {
	table, _ := newTestTable(t, DefaultTableConfig())
	mustAdd(t, table, entryA, entryB, entryC)

	var indices []int
	for i, e := range table.All() {
		indices = append(indices, i)
		// Mutating during iteration works on the snapshot.
		if e.Equal(entryA) {
			if _, err := table.RemoveFabric(2); err != nil {
				t.Fatalf("RemoveFabric failed: %v", err)
			}
		}
	}
	if !cmp.Equal(indices, []int{0, 1, 2}) {
		t.Errorf("All() indices = %v", indices)
	}

	count := 0
	for range table.All() {
		count++
		break
	}
	if count != 1 {
		t.Errorf("All() yielded %d after break", count)
	}
}

func TestTable_Concurrent(t *testing.T) {
	lim := test.TimeOut(10 * time.Second)
	defer lim.Stop()
	defer test.CheckRoutines(t)()

	table, _ := newTestTable(t, TableConfig{EntriesPerFabric: 16, MaxFabrics: 8})

	var wg sync.WaitGroup
	for f := 1; f <= 8; f++ {
		wg.Add(1)
		go func(fi fabric.FabricIndex) {
			defer wg.Done()
			for i := 0; i < 16; i++ {
				if err := table.Add(ForNode(fi, fabric.NodeID(i+1), 1, 1, nil)); err != nil {
					t.Errorf("Add failed: %v", err)
					return
				}
				_ = table.Entries()
				_ = table.CountForFabric(fi)
			}
			if fi%2 == 0 {
				if _, err := table.RemoveFabric(fi); err != nil {
					t.Errorf("RemoveFabric failed: %v", err)
				}
			}
		}(fabric.FabricIndex(f))
	}
	wg.Wait()

	if table.Size() != 4*16 {
		t.Errorf("Size() = %d, want %d", table.Size(), 4*16)
	}
	checkChain(t, table)
}
