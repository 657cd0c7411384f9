// Package binding implements the Matter binding table.
//
// A binding relates a local endpoint, on behalf of one fabric, to a remote
// node endpoint (unicast) or to a group (multicast), optionally restricted to
// one cluster. Client clusters use the table to find where to send commands.
//
// The table is a fixed array of slots sized EntriesPerFabric * MaxFabrics.
// Occupied slots are chained in insertion order. Each slot is persisted as
// its own TLV record holding the entry and the index of its successor, and a
// list-info record holds the storage version and the head index:
//
//	g/bt     {1: version, 2: head}
//	g/bt/<i> {1: fabric, 2: local, 3: cluster?, 4: remote, 5: node | 6: group, 7: next}
//
// An index of 255 means "none". Mutations persist the link that makes a
// change visible last, so a power loss between writes leaves a consistent
// chain, at worst with an unreachable record.
//
// Matter Core references:
//   - Section 9.6: Binding Cluster
//   - Section A: Tag-length-value (TLV) Encoding Format
package binding
