package api

import (
	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
)

// GossipEnvelope carries a node's current topology to its peers. Topology is
// nil when the sender has not initialized one yet.
type GossipEnvelope struct {
	Topology *topology.Topology
}

// Request is a management request. When IsDryRun reports true the request
// is only simulated.
type Request interface {
	IsDryRun() bool

	isRequest()
}

// AddNodesRequest adds nodes to the cluster without assigning partitions.
type AddNodesRequest struct {
	NodeIDs []topology.NodeID
	DryRun  bool
}

// RemoveNodesRequest moves all partitions off the given nodes, then removes
// them.
type RemoveNodesRequest struct {
	NodeIDs []topology.NodeID
	DryRun  bool
}

// ReassignPartitionsRequest redistributes every partition over exactly the
// given nodes.
type ReassignPartitionsRequest struct {
	NodeIDs []topology.NodeID
	DryRun  bool
}

// JoinPartitionRequest adds a replica of a partition to a node.
type JoinPartitionRequest struct {
	NodeID      topology.NodeID
	PartitionID topology.PartitionID
	Priority    int32
	DryRun      bool
}

// LeavePartitionRequest removes a replica of a partition from a node.
type LeavePartitionRequest struct {
	NodeID      topology.NodeID
	PartitionID topology.PartitionID
	DryRun      bool
}

func (r AddNodesRequest) IsDryRun() bool           { return r.DryRun }
func (r RemoveNodesRequest) IsDryRun() bool        { return r.DryRun }
func (r ReassignPartitionsRequest) IsDryRun() bool { return r.DryRun }
func (r JoinPartitionRequest) IsDryRun() bool      { return r.DryRun }
func (r LeavePartitionRequest) IsDryRun() bool     { return r.DryRun }

func (AddNodesRequest) isRequest()           {}
func (RemoveNodesRequest) isRequest()        {}
func (ReassignPartitionsRequest) isRequest() {}
func (JoinPartitionRequest) isRequest()      {}
func (LeavePartitionRequest) isRequest()     {}

// ChangeResponse describes an accepted or simulated change.
//
// Version is the topology version the plan was started at. ExpectedNodes is
// the state of every node once the plan completes and ChangedNodes is the
// subset of ExpectedNodes that differs from the current topology.
type ChangeResponse struct {
	Version       uint64
	ExpectedNodes topology.Nodes
	ChangedNodes  topology.Nodes
	Operations    []topology.ChangeOperation
}
