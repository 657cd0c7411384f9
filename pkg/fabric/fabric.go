// Package fabric defines the identifier types that scope Matter bindings.
//
// A fabric is a security domain; each node tracks the fabrics it is
// commissioned into by a local 8-bit Fabric Index. Bindings are owned by a
// fabric and relate a local endpoint to a remote node endpoint or to a
// group, optionally restricted to one cluster.
//
// Matter Core references:
//   - Section 2.5.1: Fabric References and Fabric Identifier
//   - Section 2.5.5: Operational Node ID
//   - Section 2.5.4: Group Identifier
//   - Section 7.5.2: Fabric-Index
package fabric

import "fmt"

// FabricIndex is an 8-bit local index identifying a fabric on this node.
// Valid values are 1-254. The value 0 is invalid/unassigned.
// Matter Core Section 7.5.2
type FabricIndex uint8

// FabricIndex constants.
const (
	// FabricIndexMin is the minimum valid fabric index.
	FabricIndexMin FabricIndex = 1
	// FabricIndexMax is the maximum valid fabric index.
	FabricIndexMax FabricIndex = 254
	// FabricIndexInvalid represents an invalid/unassigned fabric index.
	FabricIndexInvalid FabricIndex = 0
)

// IsValid returns true if the fabric index is in the valid range [1, 254].
func (f FabricIndex) IsValid() bool {
	return f >= FabricIndexMin && f <= FabricIndexMax
}

// String returns a string representation of the fabric index.
func (f FabricIndex) String() string {
	if f == FabricIndexInvalid {
		return "FabricIndex(invalid)"
	}
	return fmt.Sprintf("FabricIndex(%d)", f)
}

// Fabric table limits from Matter Core Section 11.18.5.3.
const (
	// MinSupportedFabrics is the minimum supported fabrics (5).
	MinSupportedFabrics = 5
	// MaxSupportedFabrics is the maximum supported fabrics (254).
	MaxSupportedFabrics = 254
	// DefaultSupportedFabrics is the default supported fabrics count.
	DefaultSupportedFabrics = 5
)

// NodeID is a 64-bit node identifier.
// Operational Node IDs are in the range [0x0000_0000_0000_0001, 0xFFFF_FFFE_FFFF_FFFD].
// Matter Core Section 2.5.5.1
type NodeID uint64

// NodeID range constants for operational nodes.
const (
	// NodeIDUnspecified represents an unspecified/invalid node ID.
	NodeIDUnspecified NodeID = 0x0000_0000_0000_0000
	// NodeIDMinOperational is the minimum valid operational node ID.
	NodeIDMinOperational NodeID = 0x0000_0000_0000_0001
	// NodeIDMaxOperational is the maximum valid operational node ID.
	NodeIDMaxOperational NodeID = 0xFFFF_FFFE_FFFF_FFFD
)

// IsOperational returns true if the node ID is a valid operational node ID.
func (n NodeID) IsOperational() bool {
	return n >= NodeIDMinOperational && n <= NodeIDMaxOperational
}

// String returns a string representation of the node ID.
func (n NodeID) String() string {
	return fmt.Sprintf("NodeID(0x%016X)", uint64(n))
}

// GroupID is a 16-bit group identifier. 0 is unspecified.
// Matter Core Section 2.5.4
type GroupID uint16

// GroupIDUnspecified is the reserved unspecified group ID.
const GroupIDUnspecified GroupID = 0

// IsValid returns true if the group ID is not the unspecified value.
func (g GroupID) IsValid() bool {
	return g != GroupIDUnspecified
}

func (g GroupID) String() string {
	return fmt.Sprintf("GroupID(0x%04X)", uint16(g))
}

// EndpointID is a 16-bit endpoint identifier.
type EndpointID uint16

// EndpointIDInvalid marks the absence of an endpoint, e.g. the remote
// endpoint of a group binding.
const EndpointIDInvalid EndpointID = 0xFFFF

// IsValid returns true unless e is EndpointIDInvalid.
func (e EndpointID) IsValid() bool {
	return e != EndpointIDInvalid
}

// ClusterID is a 32-bit cluster identifier.
type ClusterID uint32

func (c ClusterID) String() string {
	return fmt.Sprintf("ClusterID(0x%08X)", uint32(c))
}
