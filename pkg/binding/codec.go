package binding

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/backkem/matter-binding/pkg/fabric"
	"github.com/backkem/matter-binding/pkg/tlv"
)

// StorageVersion is the persisted format version written in the list-info
// record. Loading rejects any other value.
const StorageVersion uint32 = 1

// NullIndex is the on-disk encoding of "no slot" in next and head fields.
const NullIndex uint8 = 255

// Record sizes. Every field uses a one-octet context tag.
const (
	// EntryStorageSize bounds an encoded entry: fabric index (1), local
	// endpoint (2), cluster (4), remote endpoint (2), node or group ID (8)
	// and next index (1), inside an anonymous structure.
	EntryStorageSize = 2 + 6*tlv.ContextFieldOverhead + 1 + 2 + 4 + 2 + 8 + 1

	// ListInfoStorageSize bounds an encoded list-info record: version (4)
	// and head index (1).
	ListInfoStorageSize = 2 + 2*tlv.ContextFieldOverhead + 4 + 1
)

// Entry record tags.
const (
	tagFabricIndex    uint8 = 1
	tagLocalEndpoint  uint8 = 2
	tagCluster        uint8 = 3
	tagRemoteEndpoint uint8 = 4
	tagNodeID         uint8 = 5
	tagGroupID        uint8 = 6
	tagNextEntry      uint8 = 7
)

// List-info record tags.
const (
	tagStorageVersion uint8 = 1
	tagHead           uint8 = 2
)

// optSlot is an optional slot index. The in-memory chain never uses the
// NullIndex sentinel.
type optSlot struct {
	index uint8
	ok    bool
}

var noSlot optSlot

func slotAt(i uint8) optSlot {
	return optSlot{index: i, ok: true}
}

func (s optSlot) wire() uint8 {
	if !s.ok {
		return NullIndex
	}
	return s.index
}

func slotFromWire(v uint8) optSlot {
	if v == NullIndex {
		return noSlot
	}
	return slotAt(v)
}

// encodeEntry serializes an entry and its successor link.
func encodeEntry(e TableEntry, next optSlot) ([]byte, error) {
	if !e.FabricIndex.IsValid() {
		return nil, ErrInvalidEntry
	}

	w := tlv.NewSizedWriter(EntryStorageSize)
	if err := w.StartStructure(tlv.Anonymous()); err != nil {
		return nil, err
	}
	if err := w.PutUint(tlv.ContextTag(tagFabricIndex), uint64(e.FabricIndex)); err != nil {
		return nil, err
	}
	if err := w.PutUint(tlv.ContextTag(tagLocalEndpoint), uint64(e.LocalEndpoint)); err != nil {
		return nil, err
	}
	if e.ClusterID != nil {
		if err := w.PutUint(tlv.ContextTag(tagCluster), uint64(*e.ClusterID)); err != nil {
			return nil, err
		}
	}

	switch t := e.Target.(type) {
	case UnicastTarget:
		if err := w.PutUint(tlv.ContextTag(tagRemoteEndpoint), uint64(t.RemoteEndpoint)); err != nil {
			return nil, err
		}
		if err := w.PutUint(tlv.ContextTag(tagNodeID), uint64(t.NodeID)); err != nil {
			return nil, err
		}
	case GroupTarget:
		if err := w.PutUint(tlv.ContextTag(tagGroupID), uint64(t.GroupID)); err != nil {
			return nil, err
		}
	default:
		return nil, ErrInvalidEntry
	}

	if err := w.PutUint(tlv.ContextTag(tagNextEntry), uint64(next.wire())); err != nil {
		return nil, err
	}
	if err := w.EndContainer(); err != nil {
		return nil, err
	}
	return w.Finish()
}

// decodeEntry parses an entry record. Unknown context tags are skipped.
func decodeEntry(b []byte) (TableEntry, optSlot, error) {
	var (
		e      TableEntry
		seen   [tagNextEntry + 1]bool
		remote fabric.EndpointID
		node   fabric.NodeID
		group  fabric.GroupID
		next   optSlot
	)

	err := readStructure(b, func(tag uint8, v uint64) error {
		if tag == 0 || tag > tagNextEntry {
			return nil
		}
		if seen[tag] {
			return fmt.Errorf("duplicate tag %d", tag)
		}
		seen[tag] = true

		switch tag {
		case tagFabricIndex:
			if v > math.MaxUint8 || !fabric.FabricIndex(v).IsValid() {
				return fmt.Errorf("fabric index %d", v)
			}
			e.FabricIndex = fabric.FabricIndex(v)
		case tagLocalEndpoint:
			if v > math.MaxUint16 {
				return fmt.Errorf("local endpoint %d", v)
			}
			e.LocalEndpoint = fabric.EndpointID(v)
		case tagCluster:
			if v > math.MaxUint32 {
				return fmt.Errorf("cluster %d", v)
			}
			e.ClusterID = ClusterPtr(fabric.ClusterID(v))
		case tagRemoteEndpoint:
			if v > math.MaxUint16 {
				return fmt.Errorf("remote endpoint %d", v)
			}
			remote = fabric.EndpointID(v)
		case tagNodeID:
			node = fabric.NodeID(v)
		case tagGroupID:
			if v > math.MaxUint16 {
				return fmt.Errorf("group %d", v)
			}
			group = fabric.GroupID(v)
		case tagNextEntry:
			if v > math.MaxUint8 {
				return fmt.Errorf("next index %d", v)
			}
			next = slotFromWire(uint8(v))
		}
		return nil
	})
	if err != nil {
		return TableEntry{}, noSlot, err
	}

	for _, tag := range []uint8{tagFabricIndex, tagLocalEndpoint, tagNextEntry} {
		if !seen[tag] {
			return TableEntry{}, noSlot, fmt.Errorf("%w: missing tag %d", ErrCorruptStorage, tag)
		}
	}
	switch {
	case seen[tagNodeID] && !seen[tagGroupID]:
		if !seen[tagRemoteEndpoint] {
			return TableEntry{}, noSlot, fmt.Errorf("%w: unicast entry without remote endpoint", ErrCorruptStorage)
		}
		e.Target = UnicastTarget{NodeID: node, RemoteEndpoint: remote}
	case seen[tagGroupID] && !seen[tagNodeID]:
		e.Target = GroupTarget{GroupID: group}
	default:
		return TableEntry{}, noSlot, fmt.Errorf("%w: entry needs exactly one of node or group", ErrCorruptStorage)
	}
	return e, next, nil
}

// encodeListInfo serializes the list-info record.
func encodeListInfo(head optSlot) ([]byte, error) {
	w := tlv.NewSizedWriter(ListInfoStorageSize)
	if err := w.StartStructure(tlv.Anonymous()); err != nil {
		return nil, err
	}
	if err := w.PutUint(tlv.ContextTag(tagStorageVersion), uint64(StorageVersion)); err != nil {
		return nil, err
	}
	if err := w.PutUint(tlv.ContextTag(tagHead), uint64(head.wire())); err != nil {
		return nil, err
	}
	if err := w.EndContainer(); err != nil {
		return nil, err
	}
	return w.Finish()
}

// decodeListInfo parses the list-info record and returns the head link.
func decodeListInfo(b []byte) (optSlot, error) {
	var (
		version, head         uint64
		haveVersion, haveHead bool
	)
	err := readStructure(b, func(tag uint8, v uint64) error {
		switch tag {
		case tagStorageVersion:
			if haveVersion {
				return fmt.Errorf("duplicate tag %d", tag)
			}
			version, haveVersion = v, true
		case tagHead:
			if haveHead {
				return fmt.Errorf("duplicate tag %d", tag)
			}
			head, haveHead = v, true
		}
		return nil
	})
	if err != nil {
		return noSlot, err
	}
	if !haveVersion {
		return noSlot, fmt.Errorf("%w: list info without version", ErrCorruptStorage)
	}
	if version != uint64(StorageVersion) {
		return noSlot, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, version, StorageVersion)
	}
	if !haveHead || head > math.MaxUint8 {
		return noSlot, fmt.Errorf("%w: list info without valid head", ErrCorruptStorage)
	}
	return slotFromWire(uint8(head)), nil
}

// readStructure walks the context-tagged unsigned integer members of one
// anonymous top-level structure. Members with other tags or types are
// skipped. Any decoding failure is reported as ErrCorruptStorage.
func readStructure(b []byte, field func(tag uint8, v uint64) error) error {
	if err := walkStructure(b, field); err != nil {
		if errors.Is(err, ErrCorruptStorage) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrCorruptStorage, err)
	}
	return nil
}

func walkStructure(b []byte, field func(tag uint8, v uint64) error) error {
	r := tlv.NewReader(b)
	if err := r.Next(); err != nil {
		if err == io.EOF {
			return tlv.ErrUnexpectedEOF
		}
		return err
	}
	if r.Type() != tlv.ElementTypeStruct || !r.Tag().IsAnonymous() {
		return fmt.Errorf("expected anonymous structure, got %v", r.Type())
	}
	if err := r.EnterContainer(); err != nil {
		return err
	}

	for {
		if err := r.Next(); err != nil {
			return err
		}
		if r.IsEndOfContainer() {
			break
		}
		if !r.Tag().IsContext() || !r.Type().IsUnsignedInt() {
			continue
		}
		v, err := r.Uint()
		if err != nil {
			return err
		}
		if err := field(uint8(r.Tag().Number()), v); err != nil {
			return err
		}
	}
	if err := r.ExitContainer(); err != nil {
		return err
	}

	if err := r.Next(); err != io.EOF {
		if err == nil {
			return errors.New("trailing data after structure")
		}
		return err
	}
	return nil
}
