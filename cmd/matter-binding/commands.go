package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/backkem/matter-binding/pkg/binding"
	"github.com/backkem/matter-binding/pkg/config"
	"github.com/backkem/matter-binding/pkg/fabric"
	"github.com/backkem/matter-binding/pkg/storage"
	"github.com/pion/logging"
	"github.com/spf13/cobra"
)

// rootOptions holds the global flags.
type rootOptions struct {
	configPath string
	backend    string
	dataDir    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "matter-binding",
		Short:         "Inspect and edit a persisted Matter binding table",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to the configuration file")
	root.PersistentFlags().StringVar(&opts.backend, "backend", "", "Storage backend (memory, pebble, leveldb); overrides the config")
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "Storage directory; overrides the config")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (error, warn, info, debug, trace); overrides the config")

	root.AddCommand(
		newAddNodeCmd(opts),
		newAddGroupCmd(opts),
		newListCmd(opts),
		newRemoveCmd(opts),
		newRemoveFabricCmd(opts),
		newInitConfigCmd(),
	)
	return root
}

// loadConfig reads the configuration file, if any, and applies flag overrides.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(o.configPath); err != nil {
			return nil, err
		}
	}
	if o.backend != "" {
		cfg.Storage.Backend = o.backend
	}
	if o.dataDir != "" {
		cfg.Storage.DataDir = o.dataDir
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withTable opens the configured storage, loads the binding table into the
// process-wide instance and runs fn against it.
func (o *rootOptions) withTable(cmd *cobra.Command, fn func(table *binding.Table) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}

	loggerFactory := logging.NewDefaultLoggerFactory()
	loggerFactory.DefaultLogLevel = level
	loggerFactory.Writer = cmd.ErrOrStderr()
	log := loggerFactory.NewLogger("cli")

	store, err := storage.Open(cfg.OpenConfig(loggerFactory))
	if err != nil {
		return fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Backend, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warnf("failed to close storage: %v", err)
		}
	}()

	table, err := binding.NewTable(cfg.TableConfig(loggerFactory))
	if err != nil {
		return err
	}
	table.SetPersistentStorage(store)
	if err := table.LoadFromStorage(); err != nil {
		// Writing to a table that failed to load would replace the stored one.
		return fmt.Errorf("failed to load binding table: %w", err)
	}

	binding.SetInstance(table)
	defer binding.SetInstance(nil)

	log.Debugf("loaded %d/%d bindings from %s", table.Size(), table.Capacity(), cfg.Storage.Backend)
	return fn(binding.Instance())
}

func newAddNodeCmd(opts *rootOptions) *cobra.Command {
	var (
		fabricIndex uint8
		node        uint64
		local       uint16
		remote      uint16
		cluster     uint32
	)

	cmd := &cobra.Command{
		Use:   "add-node",
		Short: "Bind a local endpoint to a remote node endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entry := binding.ForNode(
				fabric.FabricIndex(fabricIndex),
				fabric.NodeID(node),
				fabric.EndpointID(local),
				fabric.EndpointID(remote),
				optionalCluster(cmd, cluster),
			)
			return opts.withTable(cmd, func(table *binding.Table) error {
				return addEntry(cmd.OutOrStdout(), table, entry)
			})
		},
	}
	cmd.Flags().Uint8Var(&fabricIndex, "fabric", 0, "Fabric index (1-254)")
	cmd.Flags().Uint64Var(&node, "node", 0, "Operational node ID")
	cmd.Flags().Uint16Var(&local, "local", 0, "Local endpoint")
	cmd.Flags().Uint16Var(&remote, "remote", 0, "Remote endpoint")
	cmd.Flags().Uint32Var(&cluster, "cluster", 0, "Cluster ID (default: all clusters)")
	for _, name := range []string{"fabric", "node", "local", "remote"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newAddGroupCmd(opts *rootOptions) *cobra.Command {
	var (
		fabricIndex uint8
		group       uint16
		local       uint16
		cluster     uint32
	)

	cmd := &cobra.Command{
		Use:   "add-group",
		Short: "Bind a local endpoint to a group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entry := binding.ForGroup(
				fabric.FabricIndex(fabricIndex),
				fabric.GroupID(group),
				fabric.EndpointID(local),
				optionalCluster(cmd, cluster),
			)
			return opts.withTable(cmd, func(table *binding.Table) error {
				return addEntry(cmd.OutOrStdout(), table, entry)
			})
		},
	}
	cmd.Flags().Uint8Var(&fabricIndex, "fabric", 0, "Fabric index (1-254)")
	cmd.Flags().Uint16Var(&group, "group", 0, "Group ID")
	cmd.Flags().Uint16Var(&local, "local", 0, "Local endpoint")
	cmd.Flags().Uint32Var(&cluster, "cluster", 0, "Cluster ID (default: all clusters)")
	for _, name := range []string{"fabric", "group", "local"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func optionalCluster(cmd *cobra.Command, cluster uint32) *fabric.ClusterID {
	if !cmd.Flags().Changed("cluster") {
		return nil
	}
	return binding.ClusterPtr(fabric.ClusterID(cluster))
}

// errDuplicate is returned when an equal binding already exists.
var errDuplicate = errors.New("binding already exists")

func addEntry(out io.Writer, table *binding.Table, entry binding.TableEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if idx, ok := table.Find(entry); ok {
		return fmt.Errorf("%w in slot %d", errDuplicate, idx)
	}
	if err := table.Add(entry); err != nil {
		return err
	}
	idx, _ := table.Find(entry)
	fmt.Fprintf(out, "added %v in slot %d (%d/%d)\n", entry, idx, table.Size(), table.Capacity())
	return nil
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var fabricIndex uint8

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the bindings in table order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withTable(cmd, func(table *binding.Table) error {
				return writeTable(cmd.OutOrStdout(), table, fabric.FabricIndex(fabricIndex))
			})
		},
	}
	cmd.Flags().Uint8Var(&fabricIndex, "fabric", 0, "Only list bindings of this fabric")
	return cmd
}

// writeTable prints one row per binding; a zero fabricIndex lists all.
func writeTable(out io.Writer, table *binding.Table, fabricIndex fabric.FabricIndex) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SLOT\tFABRIC\tTYPE\tLOCAL\tCLUSTER\tTARGET")
	for slot, e := range table.All() {
		if fabricIndex != fabric.FabricIndexInvalid && e.FabricIndex != fabricIndex {
			continue
		}
		cluster := "*"
		if e.ClusterID != nil {
			cluster = fmt.Sprintf("0x%04X", uint32(*e.ClusterID))
		}
		var target string
		switch t := e.Target.(type) {
		case binding.UnicastTarget:
			target = fmt.Sprintf("node 0x%016X ep %d", uint64(t.NodeID), t.RemoteEndpoint)
		case binding.GroupTarget:
			target = fmt.Sprintf("group 0x%04X", uint16(t.GroupID))
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%d\t%s\t%s\n", slot, e.FabricIndex, e.Type(), e.LocalEndpoint, cluster, target)
	}
	return w.Flush()
}

func newRemoveCmd(opts *rootOptions) *cobra.Command {
	var slot int

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove the binding in a slot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withTable(cmd, func(table *binding.Table) error {
				for it := table.Begin(); !it.Done(); it.Next() {
					if it.Index() != slot {
						continue
					}
					entry := it.Entry()
					if err := table.RemoveAt(it); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "removed %v from slot %d\n", entry, slot)
					return nil
				}
				return fmt.Errorf("%w: slot %d", binding.ErrEntryNotFound, slot)
			})
		},
	}
	cmd.Flags().IntVar(&slot, "index", -1, "Slot index, as printed by list")
	_ = cmd.MarkFlagRequired("index")
	return cmd
}

func newRemoveFabricCmd(opts *rootOptions) *cobra.Command {
	var fabricIndex uint8

	cmd := &cobra.Command{
		Use:   "remove-fabric",
		Short: "Remove every binding of a fabric",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !fabric.FabricIndex(fabricIndex).IsValid() {
				return fmt.Errorf("invalid fabric index %d", fabricIndex)
			}
			return opts.withTable(cmd, func(table *binding.Table) error {
				n, err := table.RemoveFabric(fabric.FabricIndex(fabricIndex))
				if err != nil {
					return fmt.Errorf("removed %d bindings before failing: %w", n, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d bindings of fabric %d\n", n, fabricIndex)
				return nil
			})
		},
	}
	cmd.Flags().Uint8Var(&fabricIndex, "fabric", 0, "Fabric index (1-254)")
	_ = cmd.MarkFlagRequired("fabric")
	return cmd
}

func newInitConfigCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.SaveConfig(config.DefaultConfig(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "matter-binding.yaml", "Where to write the configuration")
	return cmd
}
