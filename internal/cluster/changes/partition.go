package changes

import (
	"context"

	"github.com/samber/lo"

	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
	"github.com/yevgenykuz/zeebe/pkg/actor"
)

type partitionBootstrapApplier struct {
	op       topology.PartitionBootstrap
	executor PartitionExecutor
	config   topology.PartitionConfig
}

func (a *partitionBootstrapApplier) Init(current topology.Topology) (topology.Transform, error) {
	pid := a.op.PartitionID
	if pid < 1 || pid > topology.MaxPartitions {
		return nil, invalid(a.op, "partition id must be between 1 and %d", topology.MaxPartitions)
	}
	node, err := activeNode(current, a.op, a.op.NodeID)
	if err != nil {
		return nil, err
	}
	if p, ok := node.Partition(pid); ok && p.Lifecycle() == topology.PartitionBootstrapping {
		a.config = p.Config()
		return topology.Identity, nil
	}
	if len(current.PartitionHosts(pid)) > 0 {
		return nil, invalid(a.op, "partition %d already exists", pid)
	}
	if highest := current.MaxPartitionID(); pid != highest+1 {
		return nil, invalid(a.op, "partition ids must be contiguous, expected %d", highest+1)
	}

	// New partitions copy their exporters from partition 1.
	a.config, _ = inheritedConfig(current, 1)
	state := topology.Bootstrapping(a.op.Priority, a.config)
	return topology.UpdateNode(a.op.NodeID, func(n topology.NodeState) (topology.NodeState, error) {
		return n.AddPartition(pid, state), nil
	}), nil
}

func (a *partitionBootstrapApplier) Apply(ctx context.Context) *actor.Future[topology.Transform] {
	return execute(ctx, a.op, func(ctx context.Context) error {
		return a.executor.Bootstrap(ctx, a.op.PartitionID, a.op.Priority, a.config)
	}, topology.UpdatePartition(a.op.NodeID, a.op.PartitionID, topology.PartitionState.ToActive))
}

type partitionJoinApplier struct {
	op       topology.PartitionJoin
	executor PartitionExecutor
	config   topology.PartitionConfig
}

func (a *partitionJoinApplier) Init(current topology.Topology) (topology.Transform, error) {
	pid := a.op.PartitionID
	node, err := activeNode(current, a.op, a.op.NodeID)
	if err != nil {
		return nil, err
	}
	if p, ok := node.Partition(pid); ok {
		if p.Lifecycle() == topology.PartitionJoining {
			a.config = p.Config()
			return topology.Identity, nil
		}
		return nil, invalid(a.op, "node %s already hosts partition %d", a.op.NodeID, pid)
	}
	config, ok := inheritedConfig(current, pid)
	if !ok {
		return nil, invalid(a.op, "partition %d does not exist", pid)
	}

	a.config = config
	state := topology.Joining(a.op.Priority, config)
	return topology.UpdateNode(a.op.NodeID, func(n topology.NodeState) (topology.NodeState, error) {
		return n.AddPartition(pid, state), nil
	}), nil
}

func (a *partitionJoinApplier) Apply(ctx context.Context) *actor.Future[topology.Transform] {
	return execute(ctx, a.op, func(ctx context.Context) error {
		return a.executor.Join(ctx, a.op.PartitionID, a.op.Priority, a.config)
	}, topology.UpdatePartition(a.op.NodeID, a.op.PartitionID, topology.PartitionState.ToActive))
}

type partitionLeaveApplier struct {
	op       topology.PartitionLeave
	executor PartitionExecutor
}

func (a *partitionLeaveApplier) Init(current topology.Topology) (topology.Transform, error) {
	pid := a.op.PartitionID
	node, ok := current.Node(a.op.NodeID)
	if !ok {
		return nil, invalid(a.op, "node %s is not a member of the cluster", a.op.NodeID)
	}
	p, ok := node.Partition(pid)
	if !ok {
		return nil, invalid(a.op, "node %s does not host partition %d", a.op.NodeID, pid)
	}
	if p.Lifecycle() == topology.PartitionLeaving {
		return topology.Identity, nil
	}
	if p.Lifecycle() != topology.PartitionActive {
		return nil, invalid(a.op, "partition %d is %s on node %s, expected ACTIVE", pid, p.Lifecycle(), a.op.NodeID)
	}
	if len(current.PartitionHosts(pid)) == 1 {
		return nil, invalid(a.op, "node %s hosts the last replica of partition %d", a.op.NodeID, pid)
	}
	return topology.UpdatePartition(a.op.NodeID, pid, topology.PartitionState.ToLeaving), nil
}

func (a *partitionLeaveApplier) Apply(ctx context.Context) *actor.Future[topology.Transform] {
	return execute(ctx, a.op, func(ctx context.Context) error {
		return a.executor.Leave(ctx, a.op.PartitionID)
	}, topology.UpdateNode(a.op.NodeID, func(n topology.NodeState) (topology.NodeState, error) {
		return n.RemovePartition(a.op.PartitionID), nil
	}))
}

type partitionReconfigurePriorityApplier struct {
	op       topology.PartitionReconfigurePriority
	executor PartitionExecutor
}

func (a *partitionReconfigurePriorityApplier) Init(current topology.Topology) (topology.Transform, error) {
	node, ok := current.Node(a.op.NodeID)
	if !ok {
		return nil, invalid(a.op, "node %s is not a member of the cluster", a.op.NodeID)
	}
	p, ok := node.Partition(a.op.PartitionID)
	if !ok || p.Lifecycle() != topology.PartitionActive {
		return nil, invalid(a.op, "node %s has no active replica of partition %d", a.op.NodeID, a.op.PartitionID)
	}
	return topology.Identity, nil
}

func (a *partitionReconfigurePriorityApplier) Apply(ctx context.Context) *actor.Future[topology.Transform] {
	priority := a.op.Priority
	return execute(ctx, a.op, func(ctx context.Context) error {
		return a.executor.ReconfigurePriority(ctx, a.op.PartitionID, priority)
	}, topology.UpdatePartition(a.op.NodeID, a.op.PartitionID, func(p topology.PartitionState) (topology.PartitionState, error) {
		return p.WithPriority(priority), nil
	}))
}

type partitionForceReconfigureApplier struct {
	op       topology.PartitionForceReconfigure
	executor PartitionExecutor
}

func (a *partitionForceReconfigureApplier) Init(current topology.Topology) (topology.Transform, error) {
	pid := a.op.PartitionID
	hosts := current.PartitionHosts(pid)
	if _, ok := hosts[a.op.NodeID]; !ok {
		return nil, invalid(a.op, "node %s does not host partition %d", a.op.NodeID, pid)
	}
	if len(a.op.Members) == 0 {
		return nil, invalid(a.op, "partition %d needs at least one member", pid)
	}
	for _, m := range a.op.Members {
		if _, ok := hosts[m]; !ok {
			return nil, invalid(a.op, "member %s does not host partition %d", m, pid)
		}
	}
	return topology.Identity, nil
}

func (a *partitionForceReconfigureApplier) Apply(ctx context.Context) *actor.Future[topology.Transform] {
	pid := a.op.PartitionID
	members := a.op.Members
	return execute(ctx, a.op, func(ctx context.Context) error {
		return a.executor.ForceReconfigure(ctx, pid, members)
	}, func(nodes topology.Nodes) (topology.Nodes, error) {
		out := nodes
		for id, n := range nodes {
			if n.HasPartition(pid) && !lo.Contains(members, id) {
				out = out.With(id, n.RemovePartition(pid))
			}
		}
		return out, nil
	})
}
