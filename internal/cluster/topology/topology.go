package topology

import (
	"fmt"

	"github.com/samber/lo"
	"golang.org/x/exp/slices"

	zerrors "github.com/yevgenykuz/zeebe/pkg/errors"
)

// Topology is a versioned snapshot of the cluster configuration: every known
// node, the partitions each node hosts and an optional change plan in flight.
//
// Values are immutable. Every exported method that returns a modified
// Topology increments the version by one, so a higher version always wins
// when two nodes exchange snapshots.
type Topology struct {
	version uint64
	nodes   Nodes
	plan    *ChangePlan
}

// New returns an uninitialized topology at version 0.
func New() Topology {
	return Topology{nodes: Nodes{}}
}

// NewTopology builds a snapshot from decoded or generated parts. plan may be
// nil.
func NewTopology(version uint64, nodes Nodes, plan *ChangePlan) Topology {
	t := Topology{version: version, nodes: nodes.Clone()}
	if plan != nil {
		p := NewChangePlan(plan.pending, plan.completed)
		t.plan = &p
	}
	return t
}

func (t Topology) Version() uint64 { return t.version }

// Nodes returns a copy of the node map.
func (t Topology) Nodes() Nodes { return t.nodes.Clone() }

// NodeIDs returns all node ids in natural order.
func (t Topology) NodeIDs() []NodeID { return t.nodes.IDs() }

// Node returns the state of one node.
func (t Topology) Node(id NodeID) (NodeState, bool) {
	s, ok := t.nodes[id]
	return s, ok
}

// HasNode reports whether id is part of the topology in any lifecycle.
func (t Topology) HasNode(id NodeID) bool {
	_, ok := t.nodes[id]
	return ok
}

// IsInitialized reports whether the topology holds any node.
func (t Topology) IsInitialized() bool { return len(t.nodes) > 0 }

// ChangePlan returns the plan in flight, if any.
func (t Topology) ChangePlan() (ChangePlan, bool) {
	if t.plan == nil {
		return ChangePlan{}, false
	}
	return *t.plan, true
}

// HasPendingChanges reports whether a plan with remaining operations exists.
func (t Topology) HasPendingChanges() bool {
	return t.plan != nil && t.plan.HasPending()
}

// PendingOperation returns the head of the pending operations.
func (t Topology) PendingOperation() (ChangeOperation, bool) {
	if t.plan == nil {
		return nil, false
	}
	return t.plan.Next()
}

// PartitionIDs returns every partition hosted by at least one node, ascending.
func (t Topology) PartitionIDs() []PartitionID {
	var ids []PartitionID
	for _, n := range t.nodes {
		ids = append(ids, n.PartitionIDs()...)
	}
	ids = lo.Uniq(ids)
	slices.Sort(ids)
	return ids
}

// MaxPartitionID returns the highest hosted partition id, or 0.
func (t Topology) MaxPartitionID() PartitionID {
	return lo.Max(t.PartitionIDs())
}

// PartitionHosts returns the nodes hosting pid together with their partition state.
func (t Topology) PartitionHosts(pid PartitionID) map[NodeID]PartitionState {
	hosts := make(map[NodeID]PartitionState)
	for id, n := range t.nodes {
		if p, ok := n.Partition(pid); ok {
			hosts[id] = p
		}
	}
	return hosts
}

// AddNode adds or replaces a node.
func (t Topology) AddNode(id NodeID, state NodeState) Topology {
	return t.next(t.nodes.With(id, state), t.plan)
}

// UpdateNode applies fn to an existing node.
func (t Topology) UpdateNode(id NodeID, fn NodeTransform) (Topology, error) {
	nodes, err := t.nodes.Update(id, fn)
	if err != nil {
		return t, err
	}
	return t.next(nodes, t.plan), nil
}

// ApplyTransform runs tr over the node map without touching the change plan.
// Appliers use it to record the intent of an operation before executing it.
func (t Topology) ApplyTransform(tr Transform) (Topology, error) {
	nodes, err := tr(t.nodes.Clone())
	if err != nil {
		return t, err
	}
	return t.next(nodes, t.plan), nil
}

// StartChangePlan installs a new plan. It fails if a plan is still pending or
// if ops is empty.
func (t Topology) StartChangePlan(ops []ChangeOperation) (Topology, error) {
	if t.HasPendingChanges() {
		return t, zerrors.ErrChangePlanInProgress
	}
	if len(ops) == 0 {
		return t, zerrors.ErrEmptyChangePlan
	}
	plan := NewChangePlan(ops, nil)
	return t.next(t.nodes, &plan), nil
}

// AdvanceChangePlan applies the result of the head operation and moves it to
// the completed list. When nothing remains the plan is dropped.
func (t Topology) AdvanceChangePlan(tr Transform) (Topology, error) {
	if !t.HasPendingChanges() {
		return t, zerrors.ErrNoChangePlan
	}
	nodes, err := tr(t.nodes.Clone())
	if err != nil {
		return t, err
	}
	plan := t.plan.advance()
	if !plan.HasPending() {
		return t.next(nodes, nil), nil
	}
	return t.next(nodes, &plan), nil
}

// CancelChangePlan drops the remaining operations. Node states are left as
// they are, including intermediate states of a half applied operation.
func (t Topology) CancelChangePlan() (Topology, error) {
	if t.plan == nil {
		return t, zerrors.ErrNoChangePlan
	}
	return t.next(t.nodes, nil), nil
}

// Equal reports whether both snapshots have the same version and content.
func (t Topology) Equal(o Topology) bool {
	if t.version != o.version || !t.nodes.Equal(o.nodes) {
		return false
	}
	if (t.plan == nil) != (o.plan == nil) {
		return false
	}
	return t.plan == nil || t.plan.Equal(*o.plan)
}

// SameContent reports whether both snapshots are equal ignoring the version.
func (t Topology) SameContent(o Topology) bool {
	o.version = t.version
	return t.Equal(o)
}

func (t Topology) String() string {
	return fmt.Sprintf("Topology{version=%d, nodes=%d, pending=%t}", t.version, len(t.nodes), t.HasPendingChanges())
}

func (t Topology) next(nodes Nodes, plan *ChangePlan) Topology {
	return Topology{version: t.version + 1, nodes: nodes.Clone(), plan: plan}
}
