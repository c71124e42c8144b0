package management

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yevgenykuz/zeebe/internal/cluster/api"
	"github.com/yevgenykuz/zeebe/internal/cluster/distribution"
	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
	zerrors "github.com/yevgenykuz/zeebe/pkg/errors"
)

type fakeCluster struct {
	topo      topology.Topology
	submitted [][]topology.ChangeOperation
}

func (f *fakeCluster) Topology() topology.Topology { return f.topo }

func (f *fakeCluster) SubmitOperations(_ context.Context, ops []topology.ChangeOperation) (topology.Topology, error) {
	next, err := f.topo.StartChangePlan(ops)
	if err != nil {
		return f.topo, err
	}
	f.submitted = append(f.submitted, ops)
	f.topo = next
	return next, nil
}

// threeNodes hosts partition 1 on 0,1,2 and partition 2 on 1,2,0.
func threeNodes(t *testing.T) topology.Topology {
	t.Helper()
	cfg := distribution.StaticConfiguration{
		Nodes:             []topology.NodeID{"0", "1", "2"},
		PartitionIDs:      distribution.PartitionIDsUpTo(2),
		ReplicationFactor: 3,
	}
	topo, err := cfg.GenerateTopology()
	require.NoError(t, err)
	return topo
}

func withIdleNode(t *testing.T, id topology.NodeID) topology.Topology {
	t.Helper()
	return threeNodes(t).AddNode(id, topology.ActiveNode(nil))
}

func TestHandle_AddNodes(t *testing.T) {
	cluster := &fakeCluster{topo: threeNodes(t)}
	svc := NewService(cluster)

	resp, err := svc.Handle(context.Background(), api.AddNodesRequest{NodeIDs: []topology.NodeID{"3", "0", "3"}, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, []topology.ChangeOperation{topology.NodeJoin{NodeID: "3"}}, resp.Operations)
	assert.Equal(t, uint64(0), resp.Version)
	assert.Len(t, resp.ExpectedNodes, 4)
	require.Len(t, resp.ChangedNodes, 1)
	assert.Equal(t, topology.NodeActive, resp.ChangedNodes["3"].Lifecycle())
	assert.Empty(t, cluster.submitted)

	resp, err = svc.Handle(context.Background(), api.AddNodesRequest{NodeIDs: []topology.NodeID{"3"}})
	require.NoError(t, err)
	require.Len(t, cluster.submitted, 1)
	assert.Equal(t, uint64(1), resp.Version)
	assert.True(t, cluster.topo.HasPendingChanges())
}

func TestHandle_AddExistingNodesIsEmpty(t *testing.T) {
	cluster := &fakeCluster{topo: threeNodes(t)}

	resp, err := NewService(cluster).Handle(context.Background(), api.AddNodesRequest{NodeIDs: []topology.NodeID{"0", "1"}})
	require.NoError(t, err)
	assert.Nil(t, resp.Operations)
	assert.Empty(t, resp.ChangedNodes)
	assert.True(t, resp.ExpectedNodes.Equal(cluster.topo.Nodes()))
	assert.Empty(t, cluster.submitted)
}

func TestHandle_Reassign(t *testing.T) {
	cluster := &fakeCluster{topo: withIdleNode(t, "3")}

	resp, err := NewService(cluster).Handle(context.Background(), api.ReassignPartitionsRequest{
		NodeIDs: []topology.NodeID{"0", "1", "2", "3"},
		DryRun:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, []topology.ChangeOperation{
		topology.PartitionJoin{NodeID: "3", PartitionID: 2, Priority: 1},
		topology.PartitionLeave{NodeID: "0", PartitionID: 2},
	}, resp.Operations)

	assert.Len(t, resp.ChangedNodes, 2)
	assert.Contains(t, resp.ChangedNodes, topology.NodeID("0"))
	assert.Contains(t, resp.ChangedNodes, topology.NodeID("3"))
	p, ok := resp.ExpectedNodes["3"].Partition(2)
	require.True(t, ok)
	assert.Equal(t, topology.PartitionActive, p.Lifecycle())
	assert.False(t, resp.ExpectedNodes["0"].HasPartition(2))
}

func TestHandle_ReassignRejectsInactiveOrTooFewNodes(t *testing.T) {
	svc := NewService(&fakeCluster{topo: threeNodes(t)})

	_, err := svc.Handle(context.Background(), api.ReassignPartitionsRequest{NodeIDs: []topology.NodeID{"0", "1", "7"}})
	assert.ErrorIs(t, err, zerrors.ErrValidation)

	_, err = svc.Handle(context.Background(), api.ReassignPartitionsRequest{NodeIDs: []topology.NodeID{"0", "1"}})
	assert.ErrorIs(t, err, zerrors.ErrValidation)

	_, err = svc.Handle(context.Background(), api.ReassignPartitionsRequest{})
	assert.ErrorIs(t, err, zerrors.ErrValidation)
}

func TestHandle_RemoveNodes(t *testing.T) {
	cluster := &fakeCluster{topo: withIdleNode(t, "3")}

	resp, err := NewService(cluster).Handle(context.Background(), api.RemoveNodesRequest{NodeIDs: []topology.NodeID{"3"}, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, []topology.ChangeOperation{topology.NodeLeave{NodeID: "3"}}, resp.Operations)
	require.Len(t, resp.ChangedNodes, 1)
	assert.Equal(t, topology.NodeLeft, resp.ChangedNodes["3"].Lifecycle())
}

func TestHandle_RemoveNodesMovesPartitions(t *testing.T) {
	cfg := distribution.StaticConfiguration{
		Nodes:             []topology.NodeID{"0", "1", "2"},
		PartitionIDs:      distribution.PartitionIDsUpTo(3),
		ReplicationFactor: 2,
	}
	topo, err := cfg.GenerateTopology()
	require.NoError(t, err)
	cluster := &fakeCluster{topo: topo}

	resp, err := NewService(cluster).Handle(context.Background(), api.RemoveNodesRequest{NodeIDs: []topology.NodeID{"2"}})
	require.NoError(t, err)
	require.Len(t, cluster.submitted, 1)

	last := resp.Operations[len(resp.Operations)-1]
	assert.Equal(t, topology.NodeLeave{NodeID: "2"}, last)
	assert.Equal(t, topology.NodeLeft, resp.ExpectedNodes["2"].Lifecycle())
	assert.Empty(t, resp.ExpectedNodes["2"].PartitionIDs())
	for _, pid := range []topology.PartitionID{1, 2, 3} {
		assert.True(t, resp.ExpectedNodes["0"].HasPartition(pid), "partition %d", pid)
		assert.True(t, resp.ExpectedNodes["1"].HasPartition(pid), "partition %d", pid)
	}
}

func TestHandle_RemoveUnknownNode(t *testing.T) {
	_, err := NewService(&fakeCluster{topo: threeNodes(t)}).Handle(context.Background(), api.RemoveNodesRequest{NodeIDs: []topology.NodeID{"9"}})
	assert.ErrorIs(t, err, zerrors.ErrValidation)
}

func TestHandle_JoinAndLeavePartition(t *testing.T) {
	cluster := &fakeCluster{topo: withIdleNode(t, "3")}
	svc := NewService(cluster)

	resp, err := svc.Handle(context.Background(), api.JoinPartitionRequest{NodeID: "3", PartitionID: 1, Priority: 4})
	require.NoError(t, err)
	assert.Equal(t, []topology.ChangeOperation{topology.PartitionJoin{NodeID: "3", PartitionID: 1, Priority: 4}}, resp.Operations)
	p, ok := resp.ChangedNodes["3"].Partition(1)
	require.True(t, ok)
	assert.Equal(t, int32(4), p.Priority())
	require.Len(t, cluster.submitted, 1)

	_, err = NewService(&fakeCluster{topo: withIdleNode(t, "3")}).Handle(context.Background(),
		api.LeavePartitionRequest{NodeID: "3", PartitionID: 1})
	assert.ErrorIs(t, err, zerrors.ErrValidation)
}

func TestHandle_PlanInProgress(t *testing.T) {
	cluster := &fakeCluster{topo: withIdleNode(t, "3")}
	svc := NewService(cluster)

	_, err := svc.Handle(context.Background(), api.JoinPartitionRequest{NodeID: "3", PartitionID: 1, Priority: 1})
	require.NoError(t, err)
	_, err = svc.Handle(context.Background(), api.JoinPartitionRequest{NodeID: "3", PartitionID: 2, Priority: 1})
	assert.ErrorIs(t, err, zerrors.ErrChangePlanInProgress)
}
