package topology

import (
	"reflect"

	"golang.org/x/exp/maps"
)

// Nodes maps node ids to their state. Methods never mutate the receiver.
type Nodes map[NodeID]NodeState

// Transform is a pure function from one set of node states to the next.
type Transform func(Nodes) (Nodes, error)

// NodeTransform updates a single node.
type NodeTransform func(NodeState) (NodeState, error)

// Identity returns the nodes unchanged.
func Identity(n Nodes) (Nodes, error) { return n, nil }

// IsIdentity reports whether t is Identity.
func IsIdentity(t Transform) bool {
	return t != nil && reflect.ValueOf(t).Pointer() == reflect.ValueOf(Transform(Identity)).Pointer()
}

// Clone returns a shallow copy. NodeState values are immutable so sharing
// them is safe.
func (n Nodes) Clone() Nodes {
	c := maps.Clone(n)
	if c == nil {
		c = Nodes{}
	}
	return c
}

// IDs returns the node ids in natural order.
func (n Nodes) IDs() []NodeID {
	ids := maps.Keys(n)
	SortNodeIDs(ids)
	return ids
}

// With returns a copy of n with id set to state.
func (n Nodes) With(id NodeID, state NodeState) Nodes {
	c := n.Clone()
	c[id] = state
	return c
}

// Without returns a copy of n without id.
func (n Nodes) Without(id NodeID) Nodes {
	c := n.Clone()
	delete(c, id)
	return c
}

// Update applies fn to an existing node.
func (n Nodes) Update(id NodeID, fn NodeTransform) (Nodes, error) {
	current, ok := n[id]
	if !ok {
		return n, missingNode(id)
	}
	updated, err := fn(current)
	if err != nil {
		return n, err
	}
	return n.With(id, updated), nil
}

// Equal reports whether both maps hold identical node states.
func (n Nodes) Equal(o Nodes) bool {
	return maps.EqualFunc(n, o, NodeState.Equal)
}

// UpdateNode returns a transform applying fn to node id.
func UpdateNode(id NodeID, fn NodeTransform) Transform {
	return func(n Nodes) (Nodes, error) { return n.Update(id, fn) }
}

// UpdatePartition returns a transform applying fn to partition pid on node id.
func UpdatePartition(id NodeID, pid PartitionID, fn func(PartitionState) (PartitionState, error)) Transform {
	return UpdateNode(id, func(s NodeState) (NodeState, error) { return s.UpdatePartition(pid, fn) })
}

// SetNode returns a transform that adds or replaces node id.
func SetNode(id NodeID, state NodeState) Transform {
	return func(n Nodes) (Nodes, error) { return n.With(id, state), nil }
}

// DeleteNode returns a transform that removes node id.
func DeleteNode(id NodeID) Transform {
	return func(n Nodes) (Nodes, error) { return n.Without(id), nil }
}

// Chain applies transforms left to right and stops at the first error.
func Chain(ts ...Transform) Transform {
	return func(n Nodes) (Nodes, error) {
		var err error
		for _, t := range ts {
			if n, err = t(n); err != nil {
				return nil, err
			}
		}
		return n, nil
	}
}
