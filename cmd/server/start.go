package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/yevgenykuz/zeebe/internal/cluster"
	"github.com/yevgenykuz/zeebe/internal/cluster/changes"
	"github.com/yevgenykuz/zeebe/internal/cluster/gossip"
	"github.com/yevgenykuz/zeebe/internal/cluster/state"
	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
	"github.com/yevgenykuz/zeebe/internal/config"
	"github.com/yevgenykuz/zeebe/internal/metrics"
	"github.com/yevgenykuz/zeebe/internal/protocol"
)

const saveDebounce = 100 * time.Millisecond

var startFlags *nodeFlags

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a node",
	Long: `Start a node. The persisted topology is loaded from the data directory; when
there is none the initial topology is generated from the static configuration.

Examples:
  # First node of a three node cluster
  zeebe-cluster start --node-id=0 --nodes=0,1,2 --partitions=3 --replication-factor=3 \
    --gossip-listen=:26502 --gossip-peers=10.0.0.2:26502,10.0.0.3:26502`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
	startFlags = addNodeFlags(startCmd.Flags())
}

func runStart(cmd *cobra.Command, _ []string) error {
	cfg, err := startFlags.load(cmd)
	if err != nil {
		return err
	}

	n, err := newNode(cfg)
	if err != nil {
		return err
	}
	if err := n.start(cmd.Context()); err != nil {
		n.stop()
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	klog.InfoS("Shutting down", "node", cfg.NodeID)
	n.stop()
	return nil
}

// node wires the cluster manager to its persistence, gossip, management and
// metrics surfaces.
type node struct {
	cfg      config.Config
	manager  *state.Manager
	cluster  *cluster.Cluster
	gossip   *gossip.Gossip
	server   *protocol.Server
	exporter *metrics.Exporter
}

func newNode(cfg config.Config) (*node, error) {
	store, err := state.Open(cfg.Store, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store, err)
	}
	manager := state.NewManager(store, saveDebounce)

	local := topology.NodeID(cfg.NodeID)
	executor := changes.LoggingExecutor{Node: local, Next: changes.NoopExecutor{}}
	c := cluster.NewCluster(cluster.Config{
		LocalNode:        local,
		Static:           cfg.StaticConfiguration(),
		OperationTimeout: cfg.OperationTimeout,
	}, manager, executor)

	g := gossip.NewGossip(gossip.Config{
		NodeID:   local,
		Listen:   cfg.Gossip.Listen,
		Peers:    cfg.Gossip.Peers,
		Interval: cfg.Gossip.Interval,
		Fanout:   cfg.Gossip.Fanout,
	}, c.OnGossip)
	c.SetGossiper(g)

	n := &node{
		cfg:     cfg,
		manager: manager,
		cluster: c,
		gossip:  g,
		server:  protocol.NewServer(cfg.Listen, protocol.NewHandler(c)),
	}
	if cfg.MetricsListen != "" {
		collector := metrics.NewCollector()
		collector.SetTopologySource(c.Topology)
		n.exporter = metrics.NewExporter(cfg.MetricsListen, collector)
	}
	return n, nil
}

func (n *node) start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	metrics.InitInfo(protocol.Version, runtime.Version(), n.cfg.NodeID)

	if err := n.gossip.Start(); err != nil {
		return err
	}
	if err := n.cluster.Start(ctx); err != nil {
		return fmt.Errorf("start cluster: %w", err)
	}

	go func() {
		if err := n.server.Start(); err != nil {
			klog.ErrorS(err, "Management server stopped", "addr", n.cfg.Listen)
		}
	}()
	if n.exporter != nil {
		go func() {
			if err := n.exporter.Start(); err != nil {
				klog.ErrorS(err, "Metrics exporter stopped", "addr", n.cfg.MetricsListen)
			}
		}()
	}

	klog.InfoS("Node started", "node", n.cfg.NodeID, "listen", n.cfg.Listen,
		"gossip", n.cfg.Gossip.Listen, "version", n.cluster.Topology().Version())
	return nil
}

func (n *node) stop() {
	if n.exporter != nil {
		if err := n.exporter.Stop(); err != nil {
			klog.ErrorS(err, "Error stopping metrics exporter")
		}
	}
	if err := n.server.Stop(); err != nil {
		klog.ErrorS(err, "Error stopping management server")
	}
	if err := n.gossip.Stop(); err != nil {
		klog.ErrorS(err, "Error stopping gossip")
	}
	if err := n.cluster.Stop(); err != nil {
		klog.ErrorS(err, "Error stopping cluster")
	}
	if err := n.manager.Close(); err != nil {
		klog.ErrorS(err, "Error closing topology store")
	}
}
