package cluster

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yevgenykuz/zeebe/internal/cluster/changes"
	"github.com/yevgenykuz/zeebe/internal/cluster/distribution"
	"github.com/yevgenykuz/zeebe/internal/cluster/state"
	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
	"github.com/yevgenykuz/zeebe/pkg/actor"
	zerrors "github.com/yevgenykuz/zeebe/pkg/errors"
)

const waitFor = 5 * time.Second

// hub delivers every broadcast to all other registered clusters.
type hub struct {
	mu      sync.Mutex
	members map[topology.NodeID]*Cluster
}

func newHub() *hub {
	return &hub{members: make(map[topology.NodeID]*Cluster)}
}

func (h *hub) register(c *Cluster) {
	h.mu.Lock()
	h.members[c.LocalNode()] = c
	h.mu.Unlock()
	c.SetGossiper(hubGossiper{hub: h, from: c.LocalNode()})
}

type hubGossiper struct {
	hub  *hub
	from topology.NodeID
}

func (g hubGossiper) Broadcast(t topology.Topology) {
	g.hub.mu.Lock()
	var peers []*Cluster
	for id, c := range g.hub.members {
		if id != g.from {
			peers = append(peers, c)
		}
	}
	g.hub.mu.Unlock()
	for _, c := range peers {
		_ = c.OnGossip(t)
	}
}

// scriptedExecutor fails while err is set and blocks on gate when present.
type scriptedExecutor struct {
	changes.NoopExecutor
	mu   sync.Mutex
	err  error
	gate chan struct{}
	runs int
}

func (e *scriptedExecutor) setErr(err error) {
	e.mu.Lock()
	e.err = err
	e.mu.Unlock()
}

func (e *scriptedExecutor) Bootstrap(ctx context.Context, _ topology.PartitionID, _ int32, _ topology.PartitionConfig) error {
	return e.run(ctx)
}

func (e *scriptedExecutor) ReconfigurePriority(ctx context.Context, _ topology.PartitionID, _ int32) error {
	return e.run(ctx)
}

func (e *scriptedExecutor) run(ctx context.Context) error {
	e.mu.Lock()
	e.runs++
	err, gate := e.err, e.gate
	e.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func static(local topology.NodeID) distribution.StaticConfiguration {
	return distribution.StaticConfiguration{
		Nodes:             []topology.NodeID{"0", "1", "2"},
		LocalNode:         local,
		PartitionIDs:      distribution.PartitionIDsUpTo(2),
		ReplicationFactor: 3,
	}
}

func newNode(t *testing.T, dir string, local topology.NodeID, executor changes.PartitionExecutor) *Cluster {
	t.Helper()
	store, err := state.NewFileStore(dir)
	require.NoError(t, err)
	manager := state.NewManager(store, 10*time.Millisecond)
	t.Cleanup(func() { _ = manager.Close() })
	return NewCluster(Config{LocalNode: local, Static: static(local), OperationTimeout: time.Second}, manager, executor)
}

func startCluster(t *testing.T, executors map[topology.NodeID]changes.PartitionExecutor) map[topology.NodeID]*Cluster {
	t.Helper()
	h := newHub()
	nodes := make(map[topology.NodeID]*Cluster)
	for _, id := range []topology.NodeID{"0", "1", "2"} {
		c := newNode(t, t.TempDir(), id, executors[id])
		h.register(c)
		nodes[id] = c
	}
	for _, c := range nodes {
		require.NoError(t, c.Start(context.Background()))
		t.Cleanup(func() { _ = c.Stop() })
	}
	return nodes
}

func partitionLifecycle(t topology.Topology, id topology.NodeID, pid topology.PartitionID) topology.PartitionLifecycle {
	n, ok := t.Node(id)
	if !ok {
		return 0
	}
	p, ok := n.Partition(pid)
	if !ok {
		return 0
	}
	return p.Lifecycle()
}

func TestCluster_NotStarted(t *testing.T) {
	c := newNode(t, t.TempDir(), "0", nil)

	_, err := c.SubmitOperations(context.Background(), []topology.ChangeOperation{topology.NodeLeave{NodeID: "0"}})
	assert.ErrorIs(t, err, zerrors.ErrNotStarted)
	assert.ErrorIs(t, c.Retry(context.Background()), zerrors.ErrNotStarted)
	assert.ErrorIs(t, c.OnGossip(topology.New()), zerrors.ErrNotStarted)
	assert.Equal(t, ClusterStateDown, c.State())
}

func TestCluster_StartGeneratesAndPersists(t *testing.T) {
	dir := t.TempDir()
	c := newNode(t, dir, "0", nil)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	topo := c.Topology()
	assert.Equal(t, ClusterStateOK, c.State())
	assert.Equal(t, uint64(0), topo.Version())
	assert.Equal(t, []topology.NodeID{"0", "1", "2"}, topo.NodeIDs())
	assert.Equal(t, []topology.PartitionID{1, 2}, topo.PartitionIDs())

	store, err := state.NewFileStore(dir)
	require.NoError(t, err)
	loaded, ok, err := store.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, loaded.Equal(topo))
}

func TestCluster_BootstrapPartitionEndToEnd(t *testing.T) {
	nodes := startCluster(t, nil)
	initial := nodes["2"].Topology()

	var mu sync.Mutex
	var seen []topology.Topology
	nodes["2"].AddListener(func(t topology.Topology) {
		mu.Lock()
		seen = append(seen, t)
		mu.Unlock()
	})

	op := topology.PartitionBootstrap{NodeID: "2", PartitionID: 3, Priority: 1}
	started, err := nodes["0"].SubmitOperations(context.Background(), []topology.ChangeOperation{op})
	require.NoError(t, err)
	assert.True(t, started.HasPendingChanges())

	for id, c := range nodes {
		c := c
		require.Eventually(t, func() bool {
			topo := c.Topology()
			return !topo.HasPendingChanges() && partitionLifecycle(topo, "2", 3) == topology.PartitionActive
		}, waitFor, 10*time.Millisecond, "node %s did not converge", id)
	}

	final := nodes["2"].Topology()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen[len(seen)-1].Version() == final.Version()
	}, waitFor, 10*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(seen), 2)
	before := seen[len(seen)-2]
	assert.Equal(t, topology.PartitionBootstrapping, partitionLifecycle(before, "2", 3))
	assert.Equal(t, before.Version()+1, final.Version())

	for _, id := range []topology.NodeID{"0", "1"} {
		was, _ := initial.Node(id)
		is, _ := final.Node(id)
		assert.True(t, was.Equal(is), "node %s changed", id)
	}
	p, _ := mustNode(t, final, "2").Partition(3)
	assert.Equal(t, int32(1), p.Priority())
	assert.NoError(t, nodes["2"].LastError())
}

func mustNode(t *testing.T, topo topology.Topology, id topology.NodeID) topology.NodeState {
	t.Helper()
	n, ok := topo.Node(id)
	require.True(t, ok)
	return n
}

func TestCluster_RejectsInvalidAndConcurrentPlans(t *testing.T) {
	gate := make(chan struct{})
	exec := &scriptedExecutor{gate: gate}
	nodes := startCluster(t, map[topology.NodeID]changes.PartitionExecutor{"2": exec})
	defer close(gate)

	_, err := nodes["0"].SubmitOperations(context.Background(), nil)
	assert.ErrorIs(t, err, zerrors.ErrEmptyChangePlan)

	_, err = nodes["0"].SubmitOperations(context.Background(), []topology.ChangeOperation{
		topology.PartitionBootstrap{NodeID: "2", PartitionID: 4, Priority: 1},
	})
	assert.ErrorIs(t, err, zerrors.ErrValidation)
	assert.False(t, nodes["0"].Topology().HasPendingChanges())

	_, err = nodes["0"].SubmitOperations(context.Background(), []topology.ChangeOperation{
		topology.PartitionBootstrap{NodeID: "2", PartitionID: 3, Priority: 1},
	})
	require.NoError(t, err)
	_, err = nodes["0"].SubmitOperations(context.Background(), []topology.ChangeOperation{
		topology.PartitionLeave{NodeID: "1", PartitionID: 1},
	})
	assert.ErrorIs(t, err, zerrors.ErrChangePlanInProgress)
}

func TestCluster_FailureHaltsUntilRetry(t *testing.T) {
	exec := &scriptedExecutor{err: errors.New("disk full")}
	nodes := startCluster(t, map[topology.NodeID]changes.PartitionExecutor{"2": exec})

	_, err := nodes["0"].SubmitOperations(context.Background(), []topology.ChangeOperation{
		topology.PartitionBootstrap{NodeID: "2", PartitionID: 3, Priority: 1},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return nodes["2"].LastError() != nil }, waitFor, 10*time.Millisecond)
	assert.ErrorIs(t, nodes["2"].LastError(), zerrors.ErrExecution)
	assert.Equal(t, ClusterStateOK, nodes["2"].State())

	halted := nodes["2"].Topology()
	assert.True(t, halted.HasPendingChanges())
	assert.Equal(t, topology.PartitionBootstrapping, partitionLifecycle(halted, "2", 3))

	exec.setErr(nil)
	require.NoError(t, nodes["2"].Retry(context.Background()))
	require.Eventually(t, func() bool {
		topo := nodes["2"].Topology()
		return !topo.HasPendingChanges() && partitionLifecycle(topo, "2", 3) == topology.PartitionActive
	}, waitFor, 10*time.Millisecond)
	assert.NoError(t, nodes["2"].LastError())
}

func TestCluster_Timeout(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	exec := &scriptedExecutor{gate: gate}

	store, err := state.NewFileStore(t.TempDir())
	require.NoError(t, err)
	manager := state.NewManager(store, 0)
	defer manager.Close()
	c := NewCluster(Config{LocalNode: "2", Static: static("2"), OperationTimeout: 20 * time.Millisecond}, manager, exec)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	_, err = c.SubmitOperations(context.Background(), []topology.ChangeOperation{
		topology.PartitionBootstrap{NodeID: "2", PartitionID: 3, Priority: 1},
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.LastError() != nil }, waitFor, 10*time.Millisecond)
	assert.ErrorIs(t, c.LastError(), zerrors.ErrOperationTimeout)
}

func TestCluster_CancelChangePlan(t *testing.T) {
	exec := &scriptedExecutor{err: errors.New("unavailable")}
	nodes := startCluster(t, map[topology.NodeID]changes.PartitionExecutor{"2": exec})

	_, err := nodes["0"].CancelChangePlan(context.Background())
	assert.ErrorIs(t, err, zerrors.ErrNoChangePlan)

	_, err = nodes["0"].SubmitOperations(context.Background(), []topology.ChangeOperation{
		topology.PartitionBootstrap{NodeID: "2", PartitionID: 3, Priority: 1},
		topology.PartitionLeave{NodeID: "0", PartitionID: 1},
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return nodes["2"].LastError() != nil }, waitFor, 10*time.Millisecond)

	cancelled, err := nodes["2"].CancelChangePlan(context.Background())
	require.NoError(t, err)
	assert.False(t, cancelled.HasPendingChanges())
	assert.NoError(t, nodes["2"].LastError())
	// The intermediate state of the halted operation stays.
	assert.Equal(t, topology.PartitionBootstrapping, partitionLifecycle(cancelled, "2", 3))

	require.Eventually(t, func() bool {
		return nodes["0"].Topology().Version() == cancelled.Version()
	}, waitFor, 10*time.Millisecond)
	assert.Equal(t, topology.PartitionActive, partitionLifecycle(nodes["0"].Topology(), "0", 1))
}

func TestCluster_CancelStopsOperationInFlight(t *testing.T) {
	exec := &scriptedExecutor{gate: make(chan struct{})}
	c := newNode(t, t.TempDir(), "0", exec)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Stop() })

	_, err := c.SubmitOperations(context.Background(), []topology.ChangeOperation{
		topology.PartitionReconfigurePriority{NodeID: "0", PartitionID: 1, Priority: 7},
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		exec.mu.Lock()
		defer exec.mu.Unlock()
		return exec.runs == 1
	}, waitFor, 10*time.Millisecond)

	cancelled, err := c.CancelChangePlan(context.Background())
	require.NoError(t, err)

	// The cancelled call returns promptly and its result is dropped.
	time.Sleep(50 * time.Millisecond)
	assert.NoError(t, c.LastError())
	assert.True(t, c.Topology().Equal(cancelled))
	assert.Equal(t, ClusterStateOK, c.State())
}

func TestCluster_IllegalTransitionMarksFailed(t *testing.T) {
	gate := make(chan struct{})
	exec := &scriptedExecutor{gate: gate}
	c := newNode(t, t.TempDir(), "0", exec)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	_, err := c.SubmitOperations(context.Background(), []topology.ChangeOperation{
		topology.PartitionReconfigurePriority{NodeID: "0", PartitionID: 1, Priority: 5},
	})
	require.NoError(t, err)

	// While the executor runs, a peer publishes a newer topology in which
	// node 0 no longer hosts the partition being reconfigured.
	remote, err := c.Topology().UpdateNode("0", func(n topology.NodeState) (topology.NodeState, error) {
		return n.RemovePartition(1), nil
	})
	require.NoError(t, err)
	require.NoError(t, c.OnGossip(remote))
	require.Eventually(t, func() bool { return c.Topology().Equal(remote) }, waitFor, 10*time.Millisecond)
	close(gate)

	require.Eventually(t, func() bool { return c.State() == ClusterStateFail }, waitFor, 10*time.Millisecond)
	assert.ErrorIs(t, c.LastError(), zerrors.ErrIllegalTransition)

	_, err = c.SubmitOperations(context.Background(), []topology.ChangeOperation{topology.NodeLeave{NodeID: "1"}})
	assert.ErrorIs(t, err, zerrors.ErrClusterFailed)
}

func TestCluster_ResumesAfterRestart(t *testing.T) {
	dir := t.TempDir()
	gate := make(chan struct{})
	exec := &scriptedExecutor{gate: gate}

	c := newNode(t, dir, "2", exec)
	require.NoError(t, c.Start(context.Background()))
	_, err := c.SubmitOperations(context.Background(), []topology.ChangeOperation{
		topology.PartitionBootstrap{NodeID: "2", PartitionID: 3, Priority: 1},
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return partitionLifecycle(c.Topology(), "2", 3) == topology.PartitionBootstrapping
	}, waitFor, 10*time.Millisecond)
	require.NoError(t, c.Stop())
	close(gate)

	restarted := newNode(t, dir, "2", changes.NoopExecutor{})
	require.NoError(t, restarted.Start(context.Background()))
	defer restarted.Stop()
	require.Eventually(t, func() bool {
		topo := restarted.Topology()
		return !topo.HasPendingChanges() && partitionLifecycle(topo, "2", 3) == topology.PartitionActive
	}, waitFor, 10*time.Millisecond)
}

func TestCluster_UninitializedNodeAdoptsGossip(t *testing.T) {
	store, err := state.NewFileStore(t.TempDir())
	require.NoError(t, err)
	manager := state.NewManager(store, 0)
	defer manager.Close()
	joiner := NewCluster(Config{LocalNode: "3"}, manager, nil)
	require.NoError(t, joiner.Start(context.Background()))
	defer joiner.Stop()
	assert.False(t, joiner.Topology().IsInitialized())

	seed, err := static("0").GenerateTopology()
	require.NoError(t, err)
	require.NoError(t, joiner.OnGossip(seed))
	require.Eventually(t, func() bool { return joiner.Topology().IsInitialized() }, waitFor, 10*time.Millisecond)
	assert.True(t, joiner.Topology().Equal(seed))
}

func TestCluster_MergeKeepsHigherVersion(t *testing.T) {
	c := newNode(t, t.TempDir(), "0", nil)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	newer := c.Topology().AddNode("3", topology.Uninitialized())
	require.NoError(t, c.OnGossip(newer))
	require.Eventually(t, func() bool { return c.Topology().HasNode("3") }, waitFor, 10*time.Millisecond)

	stale, err := static("0").GenerateTopology()
	require.NoError(t, err)
	require.NoError(t, c.OnGossip(stale))

	conflicting := stale.AddNode("4", topology.Uninitialized())
	require.NoError(t, c.OnGossip(conflicting))

	_, err = c.CancelChangePlan(context.Background())
	assert.ErrorIs(t, err, zerrors.ErrNoChangePlan)
	assert.True(t, c.Topology().Equal(newer))
}

type recordingGossiper struct {
	mu  sync.Mutex
	got []topology.Topology
}

func (g *recordingGossiper) Broadcast(t topology.Topology) {
	g.mu.Lock()
	g.got = append(g.got, t)
	g.mu.Unlock()
}

func (g *recordingGossiper) last() (topology.Topology, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.got) == 0 {
		return topology.Topology{}, false
	}
	return g.got[len(g.got)-1], true
}

func TestCluster_AdoptedGossipIsForwarded(t *testing.T) {
	c := newNode(t, t.TempDir(), "0", nil)
	g := &recordingGossiper{}
	c.SetGossiper(g)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	newer := c.Topology().AddNode("3", topology.Uninitialized())
	require.NoError(t, c.OnGossip(newer))
	require.Eventually(t, func() bool {
		last, ok := g.last()
		return ok && last.Equal(newer)
	}, waitFor, 10*time.Millisecond)

	// A stale snapshot changes nothing and is not forwarded.
	g.mu.Lock()
	sent := len(g.got)
	g.mu.Unlock()
	stale, err := static("0").GenerateTopology()
	require.NoError(t, err)
	require.NoError(t, c.OnGossip(stale))
	_, err = actor.Call(context.Background(), c.actor, func() (struct{}, error) { return struct{}{}, nil })
	require.NoError(t, err)
	g.mu.Lock()
	assert.Len(t, g.got, sent)
	g.mu.Unlock()
}

func TestCluster_AddListenerRunsOnActor(t *testing.T) {
	c := newNode(t, t.TempDir(), "0", nil)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	release := make(chan struct{})
	require.NoError(t, c.actor.Run(func() { <-release }))

	var (
		mu   sync.Mutex
		seen []topology.Topology
	)
	c.AddListener(func(t topology.Topology) {
		mu.Lock()
		seen = append(seen, t)
		mu.Unlock()
	})
	mu.Lock()
	assert.Empty(t, seen, "listener ran while the actor was busy")
	mu.Unlock()

	close(release)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1 && seen[0].Equal(c.Topology())
	}, waitFor, 10*time.Millisecond)
}

func TestCluster_AddListenerBeforeStart(t *testing.T) {
	c := newNode(t, t.TempDir(), "0", nil)
	var calls int
	c.AddListener(func(topology.Topology) { calls++ })
	assert.Equal(t, 1, calls)
}
