package storage

import "fmt"

// KeyAllocator names the storage keys of persisted tables. Implementations
// must be deterministic: the same index always maps to the same key.
type KeyAllocator interface {
	// BindingTable returns the key of the binding table list-info record.
	BindingTable() string

	// BindingTableEntry returns the key of the binding entry stored in slot index.
	BindingTableEntry(index uint8) string
}

// DefaultKeyAllocator uses the global "g/" key space.
type DefaultKeyAllocator struct{}

// BindingTable implements KeyAllocator.
func (DefaultKeyAllocator) BindingTable() string {
	return "g/bt"
}

// BindingTableEntry implements KeyAllocator.
func (DefaultKeyAllocator) BindingTableEntry(index uint8) string {
	return fmt.Sprintf("g/bt/%x", index)
}

var _ KeyAllocator = DefaultKeyAllocator{}
