package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/yevgenykuz/zeebe/internal/cluster/state"
	"github.com/yevgenykuz/zeebe/internal/config"
)

// nodeFlags holds the node configuration flags. Flags override values read
// from --config only when set explicitly.
type nodeFlags struct {
	configPath string
	cfg        config.Config
	store      string
}

func addNodeFlags(fs *pflag.FlagSet) *nodeFlags {
	f := &nodeFlags{cfg: config.Default()}
	d := f.cfg

	fs.StringVar(&f.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&f.cfg.NodeID, "node-id", d.NodeID, "id of this node")
	fs.StringSliceVar(&f.cfg.Nodes, "nodes", d.Nodes, "ids of the initial cluster members")
	fs.IntVar(&f.cfg.PartitionCount, "partitions", d.PartitionCount, "number of partitions")
	fs.IntVar(&f.cfg.ReplicationFactor, "replication-factor", d.ReplicationFactor, "replicas per partition")
	fs.StringSliceVar(&f.cfg.Exporters, "exporters", d.Exporters, "exporters enabled on every partition")
	fs.StringVar(&f.cfg.DataDir, "data-dir", d.DataDir, "directory of the persisted topology")
	fs.StringVar(&f.store, "store", string(d.Store), "topology store: file or badger")
	fs.DurationVar(&f.cfg.OperationTimeout, "operation-timeout", d.OperationTimeout, "timeout of a single change operation, 0 disables it")
	fs.StringVar(&f.cfg.Listen, "listen", d.Listen, "management (RESP) listen address")
	fs.StringVar(&f.cfg.MetricsListen, "metrics-listen", d.MetricsListen, "metrics listen address, empty disables it")
	fs.StringVar(&f.cfg.Gossip.Listen, "gossip-listen", d.Gossip.Listen, "gossip listen address")
	fs.StringSliceVar(&f.cfg.Gossip.Peers, "gossip-peers", d.Gossip.Peers, "gossip addresses of other nodes")
	fs.DurationVar(&f.cfg.Gossip.Interval, "gossip-interval", d.Gossip.Interval, "gossip push interval")
	fs.IntVar(&f.cfg.Gossip.Fanout, "gossip-fanout", d.Gossip.Fanout, "peers contacted per gossip round")
	return f
}

// load reads --config if given, applies explicitly set flags on top and
// validates the result.
func (f *nodeFlags) load(cmd *cobra.Command) (config.Config, error) {
	f.cfg.Store = state.Kind(f.store)
	if f.configPath == "" {
		return f.cfg, f.cfg.Validate()
	}

	cfg, err := config.LoadFile(f.configPath)
	if err != nil {
		return cfg, err
	}

	fs := cmd.Flags()
	override := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	override("node-id", func() { cfg.NodeID = f.cfg.NodeID })
	override("nodes", func() { cfg.Nodes = f.cfg.Nodes })
	override("partitions", func() { cfg.PartitionCount = f.cfg.PartitionCount })
	override("replication-factor", func() { cfg.ReplicationFactor = f.cfg.ReplicationFactor })
	override("exporters", func() { cfg.Exporters = f.cfg.Exporters })
	override("data-dir", func() { cfg.DataDir = f.cfg.DataDir })
	override("store", func() { cfg.Store = f.cfg.Store })
	override("operation-timeout", func() { cfg.OperationTimeout = f.cfg.OperationTimeout })
	override("listen", func() { cfg.Listen = f.cfg.Listen })
	override("metrics-listen", func() { cfg.MetricsListen = f.cfg.MetricsListen })
	override("gossip-listen", func() { cfg.Gossip.Listen = f.cfg.Gossip.Listen })
	override("gossip-peers", func() { cfg.Gossip.Peers = f.cfg.Gossip.Peers })
	override("gossip-interval", func() { cfg.Gossip.Interval = f.cfg.Gossip.Interval })
	override("gossip-fanout", func() { cfg.Gossip.Fanout = f.cfg.Gossip.Fanout })

	return cfg, cfg.Validate()
}
