package distribution

import (
	"fmt"

	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
	zerrors "github.com/yevgenykuz/zeebe/pkg/errors"
)

// StaticConfiguration is the node's bootstrap configuration. A cluster that
// has never persisted a topology derives its first one from it.
type StaticConfiguration struct {
	Distributor       Distributor
	Nodes             []topology.NodeID
	LocalNode         topology.NodeID
	PartitionIDs      []topology.PartitionID
	ReplicationFactor int
	Exporters         []string
}

// PartitionIDsUpTo returns the ids 1..count.
func PartitionIDsUpTo(count int) []topology.PartitionID {
	ids := make([]topology.PartitionID, 0, count)
	for i := 1; i <= count; i++ {
		ids = append(ids, topology.PartitionID(i))
	}
	return ids
}

// GeneratePartitionDistribution distributes the configured partitions over
// the configured nodes.
func (c StaticConfiguration) GeneratePartitionDistribution() ([]PartitionMetadata, error) {
	d := c.Distributor
	if d == nil {
		d = RoundRobinDistributor{}
	}
	return d.Distribute(c.Nodes, c.PartitionIDs, c.ReplicationFactor)
}

// GenerateTopology builds the version 0 topology: every configured node is
// ACTIVE and hosts its assigned partitions as ACTIVE replicas.
func (c StaticConfiguration) GenerateTopology() (topology.Topology, error) {
	for _, pid := range c.PartitionIDs {
		if pid < 1 || pid > topology.MaxPartitions {
			return topology.Topology{}, fmt.Errorf("partition id %d out of range: %w", pid, zerrors.ErrValidation)
		}
	}
	distribution, err := c.GeneratePartitionDistribution()
	if err != nil {
		return topology.Topology{}, err
	}

	config := c.PartitionConfig()
	partitions := make(map[topology.NodeID]map[topology.PartitionID]topology.PartitionState, len(c.Nodes))
	for _, id := range c.Nodes {
		partitions[id] = make(map[topology.PartitionID]topology.PartitionState)
	}
	for _, meta := range distribution {
		for _, member := range meta.Members {
			partitions[member][meta.PartitionID] = topology.Active(meta.Priority(member), config)
		}
	}

	nodes := make(topology.Nodes, len(partitions))
	for id, hosted := range partitions {
		nodes[id] = topology.ActiveNode(hosted)
	}
	return topology.NewTopology(0, nodes, nil), nil
}

// PartitionConfig returns the config of generated partitions, with every
// configured exporter enabled.
func (c StaticConfiguration) PartitionConfig() topology.PartitionConfig {
	exporters := make(map[string]topology.ExporterState, len(c.Exporters))
	for _, name := range c.Exporters {
		exporters[name] = topology.ExporterEnabled
	}
	return topology.NewPartitionConfig(exporters)
}
