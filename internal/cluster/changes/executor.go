package changes

import (
	"context"

	"k8s.io/klog/v2"

	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
)

// PartitionExecutor performs the physical side of partition operations on the
// local node. Calls may block; implementations must honour ctx.
type PartitionExecutor interface {
	Bootstrap(ctx context.Context, id topology.PartitionID, priority int32, config topology.PartitionConfig) error
	Join(ctx context.Context, id topology.PartitionID, priority int32, config topology.PartitionConfig) error
	Leave(ctx context.Context, id topology.PartitionID) error
	ReconfigurePriority(ctx context.Context, id topology.PartitionID, priority int32) error
	ForceReconfigure(ctx context.Context, id topology.PartitionID, members []topology.NodeID) error
}

// NoopExecutor succeeds immediately.
type NoopExecutor struct{}

func (NoopExecutor) Bootstrap(context.Context, topology.PartitionID, int32, topology.PartitionConfig) error {
	return nil
}

func (NoopExecutor) Join(context.Context, topology.PartitionID, int32, topology.PartitionConfig) error {
	return nil
}

func (NoopExecutor) Leave(context.Context, topology.PartitionID) error { return nil }

func (NoopExecutor) ReconfigurePriority(context.Context, topology.PartitionID, int32) error {
	return nil
}

func (NoopExecutor) ForceReconfigure(context.Context, topology.PartitionID, []topology.NodeID) error {
	return nil
}

// LoggingExecutor logs every call before delegating to Next.
type LoggingExecutor struct {
	Node topology.NodeID
	Next PartitionExecutor
}

func (e LoggingExecutor) Bootstrap(ctx context.Context, id topology.PartitionID, priority int32, config topology.PartitionConfig) error {
	klog.InfoS("Bootstrapping partition", "node", e.Node, "partition", id, "priority", priority, "exporters", config.ExporterNames())
	return e.Next.Bootstrap(ctx, id, priority, config)
}

func (e LoggingExecutor) Join(ctx context.Context, id topology.PartitionID, priority int32, config topology.PartitionConfig) error {
	klog.InfoS("Joining partition", "node", e.Node, "partition", id, "priority", priority)
	return e.Next.Join(ctx, id, priority, config)
}

func (e LoggingExecutor) Leave(ctx context.Context, id topology.PartitionID) error {
	klog.InfoS("Leaving partition", "node", e.Node, "partition", id)
	return e.Next.Leave(ctx, id)
}

func (e LoggingExecutor) ReconfigurePriority(ctx context.Context, id topology.PartitionID, priority int32) error {
	klog.InfoS("Reconfiguring partition priority", "node", e.Node, "partition", id, "priority", priority)
	return e.Next.ReconfigurePriority(ctx, id, priority)
}

func (e LoggingExecutor) ForceReconfigure(ctx context.Context, id topology.PartitionID, members []topology.NodeID) error {
	klog.InfoS("Force reconfiguring partition", "node", e.Node, "partition", id, "members", members)
	return e.Next.ForceReconfigure(ctx, id, members)
}
