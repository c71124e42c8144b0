package changes

import (
	"context"
	"errors"
	"fmt"

	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
	"github.com/yevgenykuz/zeebe/pkg/actor"
	zerrors "github.com/yevgenykuz/zeebe/pkg/errors"
)

// Applier executes one change operation in two phases.
//
// Init validates the operation against the current topology and returns the
// transform recording its intent, for example marking a partition as JOINING.
// It returns topology.Identity when the topology already reflects that intent,
// which happens when a node resumes an operation after a restart. Init must be
// called before Apply.
//
// Apply performs the operation and completes the future with the transform
// that finalizes it.
type Applier interface {
	Init(current topology.Topology) (topology.Transform, error)
	Apply(ctx context.Context) *actor.Future[topology.Transform]
}

// New returns the applier for op.
func New(op topology.ChangeOperation, executor PartitionExecutor) (Applier, error) {
	switch o := op.(type) {
	case topology.NodeJoin:
		return &nodeJoinApplier{op: o}, nil
	case topology.NodeLeave:
		return &nodeLeaveApplier{op: o}, nil
	case topology.NodeRemove:
		return &nodeRemoveApplier{op: o}, nil
	case topology.PartitionBootstrap:
		return &partitionBootstrapApplier{op: o, executor: executor}, nil
	case topology.PartitionJoin:
		return &partitionJoinApplier{op: o, executor: executor}, nil
	case topology.PartitionLeave:
		return &partitionLeaveApplier{op: o, executor: executor}, nil
	case topology.PartitionReconfigurePriority:
		return &partitionReconfigurePriorityApplier{op: o, executor: executor}, nil
	case topology.PartitionForceReconfigure:
		return &partitionForceReconfigureApplier{op: o, executor: executor}, nil
	default:
		return nil, fmt.Errorf("unsupported change operation %T: %w", op, zerrors.ErrValidation)
	}
}

// execute runs call in its own goroutine. The future fails when ctx ends
// first, even if call ignores ctx.
func execute(ctx context.Context, op topology.ChangeOperation, call func(context.Context) error, finish topology.Transform) *actor.Future[topology.Transform] {
	f := actor.NewFuture[topology.Transform]()
	go func() {
		done := make(chan error, 1)
		go func() { done <- call(ctx) }()

		var err error
		select {
		case err = <-done:
		case <-ctx.Done():
			err = ctx.Err()
		}
		if err != nil {
			f.Fail(executionFailed(op, err))
			return
		}
		f.Complete(finish)
	}()
	return f
}

func executionFailed(op topology.ChangeOperation, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", zerrors.ErrOperationTimeout, err)
	}
	return &ExecutionError{Op: op, Err: err}
}

// activeNode returns the state of id if it is an ACTIVE member.
func activeNode(current topology.Topology, op topology.ChangeOperation, id topology.NodeID) (topology.NodeState, error) {
	node, ok := current.Node(id)
	if !ok {
		return node, invalid(op, "node %s is not a member of the cluster", id)
	}
	if node.Lifecycle() != topology.NodeActive {
		return node, invalid(op, "node %s is %s, expected ACTIVE", id, node.Lifecycle())
	}
	return node, nil
}

// inheritedConfig returns the config of pid from its host with the lowest
// node id.
func inheritedConfig(current topology.Topology, pid topology.PartitionID) (topology.PartitionConfig, bool) {
	hosts := current.PartitionHosts(pid)
	if len(hosts) == 0 {
		return topology.DefaultPartitionConfig(), false
	}
	var ids []topology.NodeID
	for id := range hosts {
		ids = append(ids, id)
	}
	topology.SortNodeIDs(ids)
	return hosts[ids[0]].Config(), true
}
