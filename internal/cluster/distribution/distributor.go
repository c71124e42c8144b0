package distribution

import (
	"fmt"

	"github.com/samber/lo"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
	zerrors "github.com/yevgenykuz/zeebe/pkg/errors"
)

// PartitionMetadata describes the replica set of one partition.
type PartitionMetadata struct {
	PartitionID    topology.PartitionID
	Members        []topology.NodeID
	Priorities     map[topology.NodeID]int32
	TargetPriority int32
	Primary        topology.NodeID
}

// Priority returns the priority of member, or 0 when it is not a member.
func (m PartitionMetadata) Priority(member topology.NodeID) int32 {
	return m.Priorities[member]
}

// HasMember reports whether id hosts the partition.
func (m PartitionMetadata) HasMember(id topology.NodeID) bool {
	_, ok := m.Priorities[id]
	return ok
}

// Distributor assigns partitions to nodes.
type Distributor interface {
	Distribute(nodes []topology.NodeID, partitions []topology.PartitionID, replicationFactor int) ([]PartitionMetadata, error)
}

// RoundRobinDistributor places the replicas of the i-th partition on the
// replicationFactor consecutive nodes starting at node i, wrapping around. The
// first of them gets the highest priority and is the primary.
type RoundRobinDistributor struct{}

func (RoundRobinDistributor) Distribute(nodes []topology.NodeID, partitions []topology.PartitionID, replicationFactor int) ([]PartitionMetadata, error) {
	sortedNodes := topology.SortedNodeIDs(lo.Uniq(nodes))
	if len(sortedNodes) == 0 {
		return nil, fmt.Errorf("cannot distribute partitions without nodes: %w", zerrors.ErrValidation)
	}
	if replicationFactor < 1 {
		return nil, fmt.Errorf("replication factor must be at least 1, got %d: %w", replicationFactor, zerrors.ErrValidation)
	}
	if replicationFactor > len(sortedNodes) {
		return nil, fmt.Errorf("replication factor %d exceeds node count %d: %w", replicationFactor, len(sortedNodes), zerrors.ErrValidation)
	}
	sortedPartitions := slices.Clone(partitions)
	slices.Sort(sortedPartitions)

	result := make([]PartitionMetadata, 0, len(sortedPartitions))
	for i, pid := range sortedPartitions {
		meta := PartitionMetadata{
			PartitionID:    pid,
			Priorities:     make(map[topology.NodeID]int32, replicationFactor),
			TargetPriority: int32(replicationFactor),
		}
		for k := 0; k < replicationFactor; k++ {
			member := sortedNodes[(i+k)%len(sortedNodes)]
			meta.Members = append(meta.Members, member)
			meta.Priorities[member] = int32(replicationFactor - k)
		}
		meta.Primary = meta.Members[0]
		topology.SortNodeIDs(meta.Members)
		result = append(result, meta)
	}
	return result, nil
}

// DeriveDistribution rebuilds the partition distribution from a topology.
// Only hosts whose replica is ACTIVE or LEAVING count; partitions without such
// a host are omitted.
func DeriveDistribution(topo topology.Topology) []PartitionMetadata {
	var result []PartitionMetadata
	for _, pid := range topo.PartitionIDs() {
		priorities := make(map[topology.NodeID]int32)
		for id, p := range topo.PartitionHosts(pid) {
			if p.Lifecycle() == topology.PartitionActive || p.Lifecycle() == topology.PartitionLeaving {
				priorities[id] = p.Priority()
			}
		}
		if len(priorities) == 0 {
			continue
		}

		members := topology.SortedNodeIDs(maps.Keys(priorities))
		primary := members[0]
		for _, m := range members[1:] {
			if priorities[m] > priorities[primary] {
				primary = m
			}
		}
		result = append(result, PartitionMetadata{
			PartitionID:    pid,
			Members:        members,
			Priorities:     priorities,
			TargetPriority: priorities[primary],
			Primary:        primary,
		})
	}
	return result
}

// ReplicationFactor returns the largest replica count among partitions.
func ReplicationFactor(metadata []PartitionMetadata) int {
	return lo.Max(lo.Map(metadata, func(m PartitionMetadata, _ int) int { return len(m.Members) }))
}
