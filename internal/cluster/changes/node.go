package changes

import (
	"context"

	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
	"github.com/yevgenykuz/zeebe/pkg/actor"
)

type nodeJoinApplier struct {
	op topology.NodeJoin
}

func (a *nodeJoinApplier) Init(current topology.Topology) (topology.Transform, error) {
	node, ok := current.Node(a.op.NodeID)
	if !ok {
		joining, err := topology.Uninitialized().ToJoining()
		if err != nil {
			return nil, err
		}
		return topology.SetNode(a.op.NodeID, joining), nil
	}
	switch node.Lifecycle() {
	case topology.NodeJoining:
		return topology.Identity, nil
	case topology.NodeUninitialized:
		return topology.UpdateNode(a.op.NodeID, topology.NodeState.ToJoining), nil
	default:
		return nil, invalid(a.op, "node %s is already %s", a.op.NodeID, node.Lifecycle())
	}
}

func (a *nodeJoinApplier) Apply(context.Context) *actor.Future[topology.Transform] {
	return actor.Completed(topology.UpdateNode(a.op.NodeID, topology.NodeState.ToActive))
}

type nodeLeaveApplier struct {
	op topology.NodeLeave
}

func (a *nodeLeaveApplier) Init(current topology.Topology) (topology.Transform, error) {
	node, ok := current.Node(a.op.NodeID)
	if !ok {
		return nil, invalid(a.op, "node %s is not a member of the cluster", a.op.NodeID)
	}
	switch node.Lifecycle() {
	case topology.NodeLeaving:
		return topology.Identity, nil
	case topology.NodeActive:
		if ids := node.PartitionIDs(); len(ids) > 0 {
			return nil, invalid(a.op, "node %s still hosts partitions %v", a.op.NodeID, ids)
		}
		return topology.UpdateNode(a.op.NodeID, topology.NodeState.ToLeaving), nil
	default:
		return nil, invalid(a.op, "node %s is %s, expected ACTIVE", a.op.NodeID, node.Lifecycle())
	}
}

func (a *nodeLeaveApplier) Apply(context.Context) *actor.Future[topology.Transform] {
	return actor.Completed(topology.UpdateNode(a.op.NodeID, topology.NodeState.ToLeft))
}

type nodeRemoveApplier struct {
	op topology.NodeRemove
}

func (a *nodeRemoveApplier) Init(current topology.Topology) (topology.Transform, error) {
	node, ok := current.Node(a.op.NodeToRemove)
	if !ok {
		return topology.Identity, nil
	}
	if len(current.NodeIDs()) == 1 {
		return nil, invalid(a.op, "cannot remove %s, the last node of the cluster", a.op.NodeToRemove)
	}
	if !a.op.Force && node.Lifecycle() != topology.NodeLeft {
		return nil, invalid(a.op, "node %s is %s, expected LEFT", a.op.NodeToRemove, node.Lifecycle())
	}
	return topology.Identity, nil
}

func (a *nodeRemoveApplier) Apply(context.Context) *actor.Future[topology.Transform] {
	return actor.Completed(topology.DeleteNode(a.op.NodeToRemove))
}
