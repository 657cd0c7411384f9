package binding

import (
	"fmt"
	"strings"

	"github.com/backkem/matter-binding/pkg/fabric"
)

// EntryType distinguishes unicast from multicast bindings.
type EntryType uint8

// Entry types.
const (
	EntryTypeUnused EntryType = iota
	EntryTypeUnicast
	EntryTypeMulticast
)

func (t EntryType) String() string {
	switch t {
	case EntryTypeUnused:
		return "Unused"
	case EntryTypeUnicast:
		return "Unicast"
	case EntryTypeMulticast:
		return "Multicast"
	default:
		return fmt.Sprintf("EntryType(%d)", uint8(t))
	}
}

// Target is the remote side of a binding: either a UnicastTarget or a
// GroupTarget. The interface is closed to this package.
type Target interface {
	entryType() EntryType
}

// UnicastTarget binds to one endpoint of a remote node.
type UnicastTarget struct {
	NodeID         fabric.NodeID
	RemoteEndpoint fabric.EndpointID
}

func (UnicastTarget) entryType() EntryType { return EntryTypeUnicast }

// GroupTarget binds to a group.
type GroupTarget struct {
	GroupID fabric.GroupID
}

func (GroupTarget) entryType() EntryType { return EntryTypeMulticast }

// TableEntry is one binding: a local endpoint of a fabric related to a
// unicast or group target, for one cluster or for all clusters.
//
// The zero value is an Unused entry.
type TableEntry struct {
	FabricIndex   fabric.FabricIndex
	LocalEndpoint fabric.EndpointID
	ClusterID     *fabric.ClusterID // nil = all clusters on the endpoint
	Target        Target            // nil = Unused
}

// ForNode returns a unicast binding. No validation is performed.
func ForNode(fabricIndex fabric.FabricIndex, node fabric.NodeID, local, remote fabric.EndpointID, cluster *fabric.ClusterID) TableEntry {
	return TableEntry{
		FabricIndex:   fabricIndex,
		LocalEndpoint: local,
		ClusterID:     cloneCluster(cluster),
		Target:        UnicastTarget{NodeID: node, RemoteEndpoint: remote},
	}
}

// ForGroup returns a multicast binding. No validation is performed.
func ForGroup(fabricIndex fabric.FabricIndex, group fabric.GroupID, local fabric.EndpointID, cluster *fabric.ClusterID) TableEntry {
	return TableEntry{
		FabricIndex:   fabricIndex,
		LocalEndpoint: local,
		ClusterID:     cloneCluster(cluster),
		Target:        GroupTarget{GroupID: group},
	}
}

// ClusterPtr returns a pointer to id, for the optional cluster of ForNode
// and ForGroup.
func ClusterPtr(id fabric.ClusterID) *fabric.ClusterID {
	return &id
}

// Type returns the binding type selected by the target.
func (e TableEntry) Type() EntryType {
	if e.Target == nil {
		return EntryTypeUnused
	}
	return e.Target.entryType()
}

// NodeID returns the node of a unicast binding.
func (e TableEntry) NodeID() (fabric.NodeID, bool) {
	u, ok := e.Target.(UnicastTarget)
	return u.NodeID, ok
}

// GroupID returns the group of a multicast binding.
func (e TableEntry) GroupID() (fabric.GroupID, bool) {
	g, ok := e.Target.(GroupTarget)
	return g.GroupID, ok
}

// Remote returns the remote endpoint of a unicast binding, and
// fabric.EndpointIDInvalid otherwise.
func (e TableEntry) Remote() fabric.EndpointID {
	if u, ok := e.Target.(UnicastTarget); ok {
		return u.RemoteEndpoint
	}
	return fabric.EndpointIDInvalid
}

// Equal reports whether two entries describe the same binding: same type,
// fabric, local endpoint and cluster restriction, plus same node and remote
// endpoint (unicast) or same group (multicast).
func (e TableEntry) Equal(other TableEntry) bool {
	if e.Type() != other.Type() {
		return false
	}
	if e.FabricIndex != other.FabricIndex || e.LocalEndpoint != other.LocalEndpoint {
		return false
	}
	if (e.ClusterID == nil) != (other.ClusterID == nil) {
		return false
	}
	if e.ClusterID != nil && *e.ClusterID != *other.ClusterID {
		return false
	}
	// Targets are comparable value types.
	return e.Target == other.Target
}

// Validate checks the fields the table itself does not: an operational node
// ID for unicast bindings and a non-zero group ID for multicast bindings.
func (e TableEntry) Validate() error {
	if !e.FabricIndex.IsValid() {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, e.FabricIndex)
	}
	switch t := e.Target.(type) {
	case UnicastTarget:
		if !t.NodeID.IsOperational() {
			return fmt.Errorf("%w: %v is not operational", ErrInvalidEntry, t.NodeID)
		}
	case GroupTarget:
		if !t.GroupID.IsValid() {
			return fmt.Errorf("%w: unspecified group", ErrInvalidEntry)
		}
	default:
		return fmt.Errorf("%w: no target", ErrInvalidEntry)
	}
	return nil
}

// String returns a compact description for logs.
func (e TableEntry) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s{fabric=%d local=%d", e.Type(), e.FabricIndex, e.LocalEndpoint)
	if e.ClusterID != nil {
		fmt.Fprintf(&b, " cluster=0x%04X", uint32(*e.ClusterID))
	}
	switch t := e.Target.(type) {
	case UnicastTarget:
		fmt.Fprintf(&b, " node=0x%016X remote=%d", uint64(t.NodeID), t.RemoteEndpoint)
	case GroupTarget:
		fmt.Fprintf(&b, " group=0x%04X", uint16(t.GroupID))
	}
	b.WriteString("}")
	return b.String()
}

// clone returns a copy that shares no memory with e.
func (e TableEntry) clone() TableEntry {
	e.ClusterID = cloneCluster(e.ClusterID)
	return e
}

func cloneCluster(c *fabric.ClusterID) *fabric.ClusterID {
	if c == nil {
		return nil
	}
	v := *c
	return &v
}
