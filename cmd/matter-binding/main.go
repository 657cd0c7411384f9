// matter-binding manages a persisted Matter binding table.
//
// The table is stored in the backend named by the configuration file (pebble,
// leveldb or memory) using the same records a device writes, so the tool can
// inspect and edit a device's bindings offline.
//
// Usage:
//
//	matter-binding [--config file] [--backend kind] [--data-dir dir] <command>
//
// Commands:
//
//	add-node       Bind a local endpoint to a remote node endpoint
//	add-group      Bind a local endpoint to a group
//	list           Print the bindings in table order
//	remove         Remove the binding in a slot
//	remove-fabric  Remove every binding of a fabric
//	init-config    Write a default configuration file
//
// Example:
//
//	matter-binding --data-dir ./bindings add-node --fabric 1 --node 0x1122 --local 1 --remote 2 --cluster 0x0006
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}
