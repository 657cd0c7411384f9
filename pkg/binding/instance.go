package binding

import "sync"

var (
	instanceMu sync.Mutex
	instance   *Table
)

// Instance returns the process-wide binding table, creating it with
// DefaultTableConfig on first use. Storage is not attached.
func Instance() *Table {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance == nil {
		t, err := NewTable(DefaultTableConfig())
		if err != nil {
			panic(err)
		}
		instance = t
	}
	return instance
}

// SetInstance replaces the process-wide binding table. A nil table makes the
// next Instance call create a fresh default one.
func SetInstance(t *Table) {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	instance = t
}
