package storage

import (
	"errors"
	"sync"
)

// ErrInjected is the default error returned by injected faults.
var ErrInjected = errors.New("storage: injected fault")

// Op identifies a delegate operation.
type Op int

// Delegate operations.
const (
	OpGet Op = iota
	OpSet
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpGet:
		return "Get"
	case OpSet:
		return "Set"
	case OpDelete:
		return "Delete"
	default:
		return "Unknown"
	}
}

// Call records one operation seen by a FaultStorage.
type Call struct {
	Op  Op
	Key string
}

type fault struct {
	op      Op
	key     string
	err     error
	oneShot bool
}

func (f fault) matches(op Op, key string) bool {
	return f.op == op && (f.key == "" || f.key == key)
}

// FaultStorage wraps a delegate and fails selected operations. It simulates
// flash write failures and power loss between writes in tests.
//
// All methods are safe for concurrent use.
type FaultStorage struct {
	inner PersistentStorageDelegate

	mu     sync.Mutex
	faults []fault
	calls  []Call
}

// NewFaultStorage wraps inner.
func NewFaultStorage(inner PersistentStorageDelegate) *FaultStorage {
	return &FaultStorage{inner: inner}
}

// FailOn makes every op on key fail with err until Reset. An empty key
// matches all keys; a nil err means ErrInjected.
func (f *FaultStorage) FailOn(op Op, key string, err error) {
	f.add(fault{op: op, key: key, err: err})
}

// FailNext makes the next op on key fail with err.
func (f *FaultStorage) FailNext(op Op, key string, err error) {
	f.add(fault{op: op, key: key, err: err, oneShot: true})
}

func (f *FaultStorage) add(ft fault) {
	if ft.err == nil {
		ft.err = ErrInjected
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = append(f.faults, ft)
}

// Reset removes all faults and clears the call log.
func (f *FaultStorage) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = nil
	f.calls = nil
}

// Calls returns the operations seen so far, including failed ones.
func (f *FaultStorage) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *FaultStorage) check(op Op, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Op: op, Key: key})
	for i, ft := range f.faults {
		if !ft.matches(op, key) {
			continue
		}
		if ft.oneShot {
			f.faults = append(f.faults[:i], f.faults[i+1:]...)
		}
		return ft.err
	}
	return nil
}

// SyncGetKeyValue implements PersistentStorageDelegate.
func (f *FaultStorage) SyncGetKeyValue(key string) ([]byte, error) {
	if err := f.check(OpGet, key); err != nil {
		return nil, err
	}
	return f.inner.SyncGetKeyValue(key)
}

// SyncSetKeyValue implements PersistentStorageDelegate.
func (f *FaultStorage) SyncSetKeyValue(key string, value []byte) error {
	if err := f.check(OpSet, key); err != nil {
		return err
	}
	return f.inner.SyncSetKeyValue(key, value)
}

// SyncDeleteKeyValue implements PersistentStorageDelegate.
func (f *FaultStorage) SyncDeleteKeyValue(key string) error {
	if err := f.check(OpDelete, key); err != nil {
		return err
	}
	return f.inner.SyncDeleteKeyValue(key)
}

var _ PersistentStorageDelegate = (*FaultStorage)(nil)
