package topology

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// NodeLifecycle is the membership state of a node.
type NodeLifecycle uint8

const (
	NodeUninitialized NodeLifecycle = iota + 1
	NodeJoining
	NodeActive
	NodeLeaving
	NodeLeft
)

func (l NodeLifecycle) String() string {
	switch l {
	case NodeUninitialized:
		return "UNINITIALIZED"
	case NodeJoining:
		return "JOINING"
	case NodeActive:
		return "ACTIVE"
	case NodeLeaving:
		return "LEAVING"
	case NodeLeft:
		return "LEFT"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether l is a known lifecycle.
func (l NodeLifecycle) Valid() bool {
	return l >= NodeUninitialized && l <= NodeLeft
}

// NodeState is the state of one node and the partitions it hosts. Values are
// immutable: every method returning a NodeState returns a modified copy.
type NodeState struct {
	lifecycle  NodeLifecycle
	partitions map[PartitionID]PartitionState
}

// NewNodeState creates a node state in an arbitrary lifecycle.
func NewNodeState(lifecycle NodeLifecycle, partitions map[PartitionID]PartitionState) NodeState {
	p := maps.Clone(partitions)
	if p == nil {
		p = make(map[PartitionID]PartitionState)
	}
	return NodeState{lifecycle: lifecycle, partitions: p}
}

// Uninitialized returns the state of a node that is known but never joined.
func Uninitialized() NodeState {
	return NewNodeState(NodeUninitialized, nil)
}

// ActiveNode returns an active node hosting partitions.
func ActiveNode(partitions map[PartitionID]PartitionState) NodeState {
	return NewNodeState(NodeActive, partitions)
}

func (n NodeState) Lifecycle() NodeLifecycle { return n.lifecycle }

// Partitions returns a copy of the hosted partitions.
func (n NodeState) Partitions() map[PartitionID]PartitionState {
	return maps.Clone(n.partitions)
}

// PartitionIDs returns the hosted partition ids in ascending order.
func (n NodeState) PartitionIDs() []PartitionID {
	ids := maps.Keys(n.partitions)
	slices.Sort(ids)
	return ids
}

// Partition returns the state of a hosted partition.
func (n NodeState) Partition(id PartitionID) (PartitionState, bool) {
	p, ok := n.partitions[id]
	return p, ok
}

// HasPartition reports whether the node hosts the partition in any lifecycle.
func (n NodeState) HasPartition(id PartitionID) bool {
	_, ok := n.partitions[id]
	return ok
}

// AddPartition returns a copy of n hosting the partition.
func (n NodeState) AddPartition(id PartitionID, state PartitionState) NodeState {
	next := NewNodeState(n.lifecycle, n.partitions)
	next.partitions[id] = state
	return next
}

// RemovePartition returns a copy of n without the partition.
func (n NodeState) RemovePartition(id PartitionID) NodeState {
	next := NewNodeState(n.lifecycle, n.partitions)
	delete(next.partitions, id)
	return next
}

// UpdatePartition applies fn to a hosted partition.
func (n NodeState) UpdatePartition(id PartitionID, fn func(PartitionState) (PartitionState, error)) (NodeState, error) {
	current, ok := n.partitions[id]
	if !ok {
		return n, missingPartition(id)
	}
	updated, err := fn(current)
	if err != nil {
		return n, err
	}
	return n.AddPartition(id, updated), nil
}

// ToJoining starts joining an uninitialized node.
func (n NodeState) ToJoining() (NodeState, error) {
	return n.transition(NodeUninitialized, NodeJoining)
}

// ToActive finishes a join.
func (n NodeState) ToActive() (NodeState, error) {
	return n.transition(NodeJoining, NodeActive)
}

// ToLeaving starts removing an active node.
func (n NodeState) ToLeaving() (NodeState, error) {
	return n.transition(NodeActive, NodeLeaving)
}

// ToLeft finishes a leave. A node that left hosts no partitions.
func (n NodeState) ToLeft() (NodeState, error) {
	next, err := n.transition(NodeLeaving, NodeLeft)
	if err != nil {
		return n, err
	}
	return NewNodeState(next.lifecycle, nil), nil
}

func (n NodeState) transition(from, to NodeLifecycle) (NodeState, error) {
	if n.lifecycle != from {
		return n, &IllegalTransitionError{Entity: "node", From: n.lifecycle.String(), To: to.String()}
	}
	return NewNodeState(to, n.partitions), nil
}

// Equal reports whether both node states are identical.
func (n NodeState) Equal(o NodeState) bool {
	if n.lifecycle != o.lifecycle || len(n.partitions) != len(o.partitions) {
		return false
	}
	for id, p := range n.partitions {
		op, ok := o.partitions[id]
		if !ok || !p.Equal(op) {
			return false
		}
	}
	return true
}
