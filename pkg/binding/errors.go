package binding

import "errors"

// Table errors.
var (
	// ErrTableFull is returned by Add when every slot is occupied.
	ErrTableFull = errors.New("binding: table full")

	// ErrFabricQuotaExceeded is returned by Add when the fabric already owns
	// EntriesPerFabric bindings and quota enforcement is enabled.
	ErrFabricQuotaExceeded = errors.New("binding: fabric binding quota exceeded")

	// ErrInvalidEntry is returned for Unused entries or entries without a valid fabric.
	ErrInvalidEntry = errors.New("binding: invalid entry")

	// ErrStorageNotSet is returned by persistence-touching operations before
	// SetPersistentStorage.
	ErrStorageNotSet = errors.New("binding: persistent storage not set")

	// ErrIndexOutOfRange is returned by GetAt for an index beyond capacity.
	ErrIndexOutOfRange = errors.New("binding: index out of range")

	// ErrEntryNotFound is returned by GetAt for an unused slot.
	ErrEntryNotFound = errors.New("binding: entry not found")

	// ErrInvalidIterator is returned by RemoveAt for an iterator that is
	// finished, belongs to another table, or was invalidated by a mutation.
	ErrInvalidIterator = errors.New("binding: invalid iterator")

	// ErrInvalidConfig is returned by NewTable for an unusable capacity.
	ErrInvalidConfig = errors.New("binding: invalid table configuration")

	// ErrVersionMismatch is returned when the persisted list-info record was
	// written by an unknown storage format version.
	ErrVersionMismatch = errors.New("binding: storage version mismatch")

	// ErrCorruptStorage is returned when a persisted record cannot be decoded
	// or the persisted chain is inconsistent.
	ErrCorruptStorage = errors.New("binding: corrupt storage")
)
