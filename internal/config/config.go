package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/yevgenykuz/zeebe/internal/cluster/distribution"
	"github.com/yevgenykuz/zeebe/internal/cluster/state"
	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
)

var (
	ErrMissingNodeID         = errors.New("config: node id is required")
	ErrLocalNodeNotMember    = errors.New("config: node id is not in the cluster member list")
	ErrInvalidPartitionCount = errors.New("config: partition count out of range")
	ErrInvalidReplication    = errors.New("config: replication factor out of range")
	ErrInvalidStore          = errors.New("config: unknown store kind")
	ErrInvalidGossip         = errors.New("config: invalid gossip settings")
	ErrInvalidTimeout        = errors.New("config: operation timeout must not be negative")
)

// Config is the configuration of one node.
type Config struct {
	NodeID            string        `yaml:"node_id"`
	Nodes             []string      `yaml:"nodes"`
	PartitionCount    int           `yaml:"partition_count"`
	ReplicationFactor int           `yaml:"replication_factor"`
	Exporters         []string      `yaml:"exporters"`
	DataDir           string        `yaml:"data_dir"`
	Store             state.Kind    `yaml:"store"`
	OperationTimeout  time.Duration `yaml:"operation_timeout"`
	Listen            string        `yaml:"listen"`
	MetricsListen     string        `yaml:"metrics_listen"`
	Gossip            GossipConfig  `yaml:"gossip"`
}

// GossipConfig configures topology dissemination.
type GossipConfig struct {
	Listen   string        `yaml:"listen"`
	Peers    []string      `yaml:"peers"`
	Interval time.Duration `yaml:"interval"`
	Fanout   int           `yaml:"fanout"`
}

// Default returns a single node configuration.
func Default() Config {
	return Config{
		NodeID:            "0",
		Nodes:             []string{"0"},
		PartitionCount:    1,
		ReplicationFactor: 1,
		DataDir:           "./data",
		Store:             state.KindFile,
		OperationTimeout:  5 * time.Minute,
		Listen:            ":26500",
		MetricsListen:     ":9600",
		Gossip: GossipConfig{
			Listen:   ":26502",
			Interval: time.Second,
			Fanout:   2,
		},
	}
}

// LoadFile reads a YAML file on top of Default.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.NodeID == "" {
		return ErrMissingNodeID
	}
	if !lo.Contains(c.Nodes, c.NodeID) {
		return fmt.Errorf("%w: %s", ErrLocalNodeNotMember, c.NodeID)
	}
	if c.PartitionCount < 1 || c.PartitionCount > int(topology.MaxPartitions) {
		return fmt.Errorf("%w: %d", ErrInvalidPartitionCount, c.PartitionCount)
	}
	if n := len(lo.Uniq(c.Nodes)); c.ReplicationFactor < 1 || c.ReplicationFactor > n {
		return fmt.Errorf("%w: %d with %d nodes", ErrInvalidReplication, c.ReplicationFactor, n)
	}
	if c.Store != state.KindFile && c.Store != state.KindBadger {
		return fmt.Errorf("%w: %q", ErrInvalidStore, c.Store)
	}
	if c.OperationTimeout < 0 {
		return ErrInvalidTimeout
	}
	if c.Gossip.Interval <= 0 || c.Gossip.Fanout < 1 {
		return fmt.Errorf("%w: interval %s, fanout %d", ErrInvalidGossip, c.Gossip.Interval, c.Gossip.Fanout)
	}
	return nil
}

// StaticConfiguration returns the bootstrap configuration of the node.
func (c Config) StaticConfiguration() distribution.StaticConfiguration {
	return distribution.StaticConfiguration{
		Distributor:       distribution.RoundRobinDistributor{},
		Nodes:             lo.Map(c.Nodes, func(id string, _ int) topology.NodeID { return topology.NodeID(id) }),
		LocalNode:         topology.NodeID(c.NodeID),
		PartitionIDs:      distribution.PartitionIDsUpTo(c.PartitionCount),
		ReplicationFactor: c.ReplicationFactor,
		Exporters:         c.Exporters,
	}
}
