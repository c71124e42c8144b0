package topology

import (
	"fmt"
)

// OperationKind names a change operation variant.
type OperationKind uint8

const (
	KindNodeJoin OperationKind = iota + 1
	KindNodeLeave
	KindNodeRemove
	KindPartitionBootstrap
	KindPartitionJoin
	KindPartitionLeave
	KindPartitionReconfigurePriority
	KindPartitionForceReconfigure
)

var operationKindNames = map[OperationKind]string{
	KindNodeJoin:                     "node_join",
	KindNodeLeave:                    "node_leave",
	KindNodeRemove:                   "node_remove",
	KindPartitionBootstrap:           "partition_bootstrap",
	KindPartitionJoin:                "partition_join",
	KindPartitionLeave:               "partition_leave",
	KindPartitionReconfigurePriority: "partition_reconfigure_priority",
	KindPartitionForceReconfigure:    "partition_force_reconfigure",
}

func (k OperationKind) String() string {
	if name, ok := operationKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// OperationKinds returns every known kind in declaration order.
func OperationKinds() []OperationKind {
	return []OperationKind{
		KindNodeJoin, KindNodeLeave, KindNodeRemove,
		KindPartitionBootstrap, KindPartitionJoin, KindPartitionLeave,
		KindPartitionReconfigurePriority, KindPartitionForceReconfigure,
	}
}

// ChangeOperation is a single step of a change plan. It is executed by the
// node returned from Target. The set of implementations is closed.
type ChangeOperation interface {
	Target() NodeID
	Kind() OperationKind
	String() string

	isChangeOperation()
}

// PartitionOperation is a ChangeOperation acting on one partition.
type PartitionOperation interface {
	ChangeOperation
	Partition() PartitionID
}

// NodeJoin adds a node to the cluster.
type NodeJoin struct {
	NodeID NodeID
}

// NodeLeave removes the executing node from the cluster once it hosts nothing.
type NodeLeave struct {
	NodeID NodeID
}

// NodeRemove is executed by NodeID to drop NodeToRemove from the topology.
// Force skips the check that NodeToRemove already left.
type NodeRemove struct {
	NodeID       NodeID
	NodeToRemove NodeID
	Force        bool
}

// PartitionBootstrap creates a new partition on a node.
type PartitionBootstrap struct {
	NodeID      NodeID
	PartitionID PartitionID
	Priority    int32
}

// PartitionJoin adds a replica of an existing partition to a node.
type PartitionJoin struct {
	NodeID      NodeID
	PartitionID PartitionID
	Priority    int32
}

// PartitionLeave removes a replica from a node.
type PartitionLeave struct {
	NodeID      NodeID
	PartitionID PartitionID
}

// PartitionReconfigurePriority changes the priority of a hosted replica.
type PartitionReconfigurePriority struct {
	NodeID      NodeID
	PartitionID PartitionID
	Priority    int32
}

// PartitionForceReconfigure shrinks a partition's replica set to Members,
// without consensus from the dropped replicas.
type PartitionForceReconfigure struct {
	NodeID      NodeID
	PartitionID PartitionID
	Members     []NodeID
}

func (o NodeJoin) Target() NodeID                     { return o.NodeID }
func (o NodeLeave) Target() NodeID                    { return o.NodeID }
func (o NodeRemove) Target() NodeID                   { return o.NodeID }
func (o PartitionBootstrap) Target() NodeID           { return o.NodeID }
func (o PartitionJoin) Target() NodeID                { return o.NodeID }
func (o PartitionLeave) Target() NodeID               { return o.NodeID }
func (o PartitionReconfigurePriority) Target() NodeID { return o.NodeID }
func (o PartitionForceReconfigure) Target() NodeID    { return o.NodeID }

func (NodeJoin) Kind() OperationKind                     { return KindNodeJoin }
func (NodeLeave) Kind() OperationKind                    { return KindNodeLeave }
func (NodeRemove) Kind() OperationKind                   { return KindNodeRemove }
func (PartitionBootstrap) Kind() OperationKind           { return KindPartitionBootstrap }
func (PartitionJoin) Kind() OperationKind                { return KindPartitionJoin }
func (PartitionLeave) Kind() OperationKind               { return KindPartitionLeave }
func (PartitionReconfigurePriority) Kind() OperationKind { return KindPartitionReconfigurePriority }
func (PartitionForceReconfigure) Kind() OperationKind    { return KindPartitionForceReconfigure }

func (o PartitionBootstrap) Partition() PartitionID           { return o.PartitionID }
func (o PartitionJoin) Partition() PartitionID                { return o.PartitionID }
func (o PartitionLeave) Partition() PartitionID               { return o.PartitionID }
func (o PartitionReconfigurePriority) Partition() PartitionID { return o.PartitionID }
func (o PartitionForceReconfigure) Partition() PartitionID    { return o.PartitionID }

func (o NodeJoin) String() string  { return fmt.Sprintf("NodeJoin{node=%s}", o.NodeID) }
func (o NodeLeave) String() string { return fmt.Sprintf("NodeLeave{node=%s}", o.NodeID) }

func (o NodeRemove) String() string {
	return fmt.Sprintf("NodeRemove{node=%s, remove=%s, force=%t}", o.NodeID, o.NodeToRemove, o.Force)
}

func (o PartitionBootstrap) String() string {
	return fmt.Sprintf("PartitionBootstrap{node=%s, partition=%d, priority=%d}", o.NodeID, o.PartitionID, o.Priority)
}

func (o PartitionJoin) String() string {
	return fmt.Sprintf("PartitionJoin{node=%s, partition=%d, priority=%d}", o.NodeID, o.PartitionID, o.Priority)
}

func (o PartitionLeave) String() string {
	return fmt.Sprintf("PartitionLeave{node=%s, partition=%d}", o.NodeID, o.PartitionID)
}

func (o PartitionReconfigurePriority) String() string {
	return fmt.Sprintf("PartitionReconfigurePriority{node=%s, partition=%d, priority=%d}", o.NodeID, o.PartitionID, o.Priority)
}

func (o PartitionForceReconfigure) String() string {
	return fmt.Sprintf("PartitionForceReconfigure{node=%s, partition=%d, members=%v}", o.NodeID, o.PartitionID, o.Members)
}

func (NodeJoin) isChangeOperation()                     {}
func (NodeLeave) isChangeOperation()                    {}
func (NodeRemove) isChangeOperation()                   {}
func (PartitionBootstrap) isChangeOperation()           {}
func (PartitionJoin) isChangeOperation()                {}
func (PartitionLeave) isChangeOperation()               {}
func (PartitionReconfigurePriority) isChangeOperation() {}
func (PartitionForceReconfigure) isChangeOperation()    {}

// OperationsEqual reports whether two operations are the same variant with the
// same fields.
func OperationsEqual(a, b ChangeOperation) bool {
	fa, ok := a.(PartitionForceReconfigure)
	if !ok {
		return a == b
	}
	fb, ok := b.(PartitionForceReconfigure)
	if !ok || fa.NodeID != fb.NodeID || fa.PartitionID != fb.PartitionID || len(fa.Members) != len(fb.Members) {
		return false
	}
	for i := range fa.Members {
		if fa.Members[i] != fb.Members[i] {
			return false
		}
	}
	return true
}
