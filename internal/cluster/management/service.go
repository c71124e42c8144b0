// Package management turns cluster management requests into change plans.
package management

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"k8s.io/klog/v2"

	"github.com/yevgenykuz/zeebe/internal/cluster/api"
	"github.com/yevgenykuz/zeebe/internal/cluster/changes"
	"github.com/yevgenykuz/zeebe/internal/cluster/distribution"
	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
	zerrors "github.com/yevgenykuz/zeebe/pkg/errors"
)

// Cluster is the part of cluster.Cluster the service needs.
type Cluster interface {
	Topology() topology.Topology
	SubmitOperations(ctx context.Context, ops []topology.ChangeOperation) (topology.Topology, error)
}

type Service struct {
	cluster     Cluster
	distributor distribution.Distributor
}

func NewService(cluster Cluster) *Service {
	return &Service{cluster: cluster, distributor: distribution.RoundRobinDistributor{}}
}

// Handle computes the operations for req, validates them against the current
// topology and, unless req is a dry run, starts them as a change plan.
func (s *Service) Handle(ctx context.Context, req api.Request) (api.ChangeResponse, error) {
	current := s.cluster.Topology()
	ops, err := s.Operations(current, req)
	if err != nil {
		return api.ChangeResponse{}, err
	}
	if len(ops) == 0 {
		return api.ChangeResponse{
			Version:       current.Version(),
			ExpectedNodes: current.Nodes(),
			ChangedNodes:  topology.Nodes{},
		}, nil
	}

	expected, err := changes.Simulate(current, ops)
	if err != nil {
		return api.ChangeResponse{}, err
	}
	resp := api.ChangeResponse{
		Version:       current.Version(),
		ExpectedNodes: expected.Nodes(),
		ChangedNodes:  changedNodes(current, expected),
		Operations:    ops,
	}
	if req.IsDryRun() {
		return resp, nil
	}

	started, err := s.cluster.SubmitOperations(ctx, ops)
	if err != nil {
		return api.ChangeResponse{}, err
	}
	resp.Version = started.Version()
	klog.InfoS("Accepted change request", "request", fmt.Sprintf("%T", req), "version", started.Version(), "operations", len(ops))
	return resp, nil
}

// Operations translates req into change operations against current.
func (s *Service) Operations(current topology.Topology, req api.Request) ([]topology.ChangeOperation, error) {
	switch r := req.(type) {
	case api.AddNodesRequest:
		return s.addNodes(current, r.NodeIDs)
	case api.RemoveNodesRequest:
		return s.removeNodes(current, r.NodeIDs)
	case api.ReassignPartitionsRequest:
		return s.reassign(current, r.NodeIDs)
	case api.JoinPartitionRequest:
		return []topology.ChangeOperation{
			topology.PartitionJoin{NodeID: r.NodeID, PartitionID: r.PartitionID, Priority: r.Priority},
		}, nil
	case api.LeavePartitionRequest:
		return []topology.ChangeOperation{
			topology.PartitionLeave{NodeID: r.NodeID, PartitionID: r.PartitionID},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported request %T: %w", req, zerrors.ErrValidation)
	}
}

func (s *Service) addNodes(current topology.Topology, ids []topology.NodeID) ([]topology.ChangeOperation, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("no nodes to add: %w", zerrors.ErrValidation)
	}
	var ops []topology.ChangeOperation
	for _, id := range topology.SortedNodeIDs(lo.Uniq(ids)) {
		if node, ok := current.Node(id); ok {
			if l := node.Lifecycle(); l == topology.NodeActive || l == topology.NodeJoining {
				continue
			}
		}
		ops = append(ops, topology.NodeJoin{NodeID: id})
	}
	return ops, nil
}

func (s *Service) removeNodes(current topology.Topology, ids []topology.NodeID) ([]topology.ChangeOperation, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("no nodes to remove: %w", zerrors.ErrValidation)
	}
	removed := topology.SortedNodeIDs(lo.Uniq(ids))
	for _, id := range removed {
		if !current.HasNode(id) {
			return nil, fmt.Errorf("node %s is not a member of the cluster: %w", id, zerrors.ErrValidation)
		}
	}

	remaining := lo.Filter(activeNodes(current), func(id topology.NodeID, _ int) bool {
		return !lo.Contains(removed, id)
	})
	ops, err := s.reassign(current, remaining)
	if err != nil {
		return nil, err
	}
	for _, id := range removed {
		if node, _ := current.Node(id); node.Lifecycle() == topology.NodeActive {
			ops = append(ops, topology.NodeLeave{NodeID: id})
		}
	}
	return ops, nil
}

// reassign distributes every partition over targets, keeping the current
// replication factor. Per partition, new replicas join before priorities
// change and old replicas leave, so a partition never loses its last host.
func (s *Service) reassign(current topology.Topology, targets []topology.NodeID) ([]topology.ChangeOperation, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("no nodes to distribute partitions over: %w", zerrors.ErrValidation)
	}
	targets = topology.SortedNodeIDs(lo.Uniq(targets))
	for _, id := range targets {
		node, ok := current.Node(id)
		if !ok || node.Lifecycle() != topology.NodeActive {
			return nil, fmt.Errorf("node %s is not active: %w", id, zerrors.ErrValidation)
		}
	}

	old := distribution.DeriveDistribution(current)
	if len(old) == 0 {
		return nil, nil
	}
	partitions := lo.Map(old, func(m distribution.PartitionMetadata, _ int) topology.PartitionID { return m.PartitionID })
	next, err := s.distributor.Distribute(targets, partitions, distribution.ReplicationFactor(old))
	if err != nil {
		return nil, err
	}

	before := lo.KeyBy(old, func(m distribution.PartitionMetadata) topology.PartitionID { return m.PartitionID })
	var ops []topology.ChangeOperation
	for _, after := range next {
		pid := after.PartitionID
		was := before[pid]
		for _, id := range after.Members {
			if !was.HasMember(id) {
				ops = append(ops, topology.PartitionJoin{NodeID: id, PartitionID: pid, Priority: after.Priority(id)})
			}
		}
		for _, id := range after.Members {
			if was.HasMember(id) && was.Priority(id) != after.Priority(id) {
				ops = append(ops, topology.PartitionReconfigurePriority{NodeID: id, PartitionID: pid, Priority: after.Priority(id)})
			}
		}
		for _, id := range was.Members {
			if !after.HasMember(id) {
				ops = append(ops, topology.PartitionLeave{NodeID: id, PartitionID: pid})
			}
		}
	}
	return ops, nil
}

func activeNodes(t topology.Topology) []topology.NodeID {
	return lo.Filter(t.NodeIDs(), func(id topology.NodeID, _ int) bool {
		node, _ := t.Node(id)
		return node.Lifecycle() == topology.NodeActive
	})
}

func changedNodes(current, expected topology.Topology) topology.Nodes {
	changed := topology.Nodes{}
	for _, id := range expected.NodeIDs() {
		after, _ := expected.Node(id)
		if before, ok := current.Node(id); !ok || !before.Equal(after) {
			changed[id] = after
		}
	}
	return changed
}
