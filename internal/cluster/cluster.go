// Package cluster runs the dynamic configuration of one node: it owns the
// node's view of the topology, applies the change operations that target the
// node and exchanges topologies with peers.
package cluster

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/klog/v2"

	"github.com/yevgenykuz/zeebe/internal/cluster/changes"
	"github.com/yevgenykuz/zeebe/internal/cluster/distribution"
	"github.com/yevgenykuz/zeebe/internal/cluster/state"
	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
	"github.com/yevgenykuz/zeebe/internal/metrics"
	"github.com/yevgenykuz/zeebe/pkg/actor"
	zerrors "github.com/yevgenykuz/zeebe/pkg/errors"
)

type ClusterState int32

const (
	ClusterStateDown ClusterState = iota
	ClusterStateOK
	ClusterStateFail
)

func (s ClusterState) String() string {
	switch s {
	case ClusterStateDown:
		return "down"
	case ClusterStateOK:
		return "ok"
	case ClusterStateFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Gossiper disseminates the local topology to peers. Broadcast must not block.
type Gossiper interface {
	Broadcast(t topology.Topology)
}

// Listener is called on every change of the local topology. It runs on the
// cluster's actor and must not block.
type Listener func(t topology.Topology)

type Config struct {
	LocalNode topology.NodeID
	// Static generates the initial topology when none is persisted. A zero
	// value starts the node uninitialized, waiting for a topology from gossip.
	Static distribution.StaticConfiguration
	// OperationTimeout bounds a single executor call. Zero disables it.
	OperationTimeout time.Duration
}

// Cluster owns the local topology. All mutations run on a single actor;
// readers use the last published snapshot.
type Cluster struct {
	cfg      Config
	actor    *actor.Actor
	store    *state.Manager
	executor changes.PartitionExecutor
	gossiper Gossiper

	current atomic.Pointer[topology.Topology]
	state   atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	lastErr   error
	listeners []Listener

	// Owned by the actor.
	topo     topology.Topology
	applying bool
	cancelOp context.CancelFunc
	haltedOp topology.ChangeOperation
}

func NewCluster(cfg Config, store *state.Manager, executor changes.PartitionExecutor) *Cluster {
	if executor == nil {
		executor = changes.NoopExecutor{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cluster{
		cfg:      cfg,
		actor:    actor.New("cluster-" + string(cfg.LocalNode)),
		store:    store,
		executor: executor,
		ctx:      ctx,
		cancel:   cancel,
		topo:     topology.New(),
	}
	initial := topology.New()
	c.current.Store(&initial)
	return c
}

// SetGossiper sets the gossiper. It must be called before Start.
func (c *Cluster) SetGossiper(g Gossiper) {
	c.gossiper = g
}

// AddListener registers l and calls it with the current topology. Once the
// cluster is started both happen on the actor, so l sees no update before the
// initial call.
func (c *Cluster) AddListener(l Listener) {
	register := func() {
		c.mu.Lock()
		c.listeners = append(c.listeners, l)
		c.mu.Unlock()
		l(c.Topology())
	}
	if c.State() != ClusterStateDown && c.actor.Run(register) == nil {
		return
	}
	register()
}

// Start loads the persisted topology or generates the initial one, then
// resumes a pending operation targeting this node.
func (c *Cluster) Start(ctx context.Context) error {
	if ClusterState(c.state.Load()) != ClusterStateDown {
		return nil
	}

	topo, ok, err := c.store.Load()
	if err != nil {
		return err
	}
	switch {
	case ok:
		klog.InfoS("Loaded persisted topology", "node", c.cfg.LocalNode, "version", topo.Version())
	case len(c.cfg.Static.Nodes) > 0:
		if topo, err = c.cfg.Static.GenerateTopology(); err != nil {
			return err
		}
		if err := c.store.Save(topo); err != nil {
			return err
		}
		klog.InfoS("Generated initial topology", "node", c.cfg.LocalNode, "nodes", len(c.cfg.Static.Nodes),
			"partitions", len(c.cfg.Static.PartitionIDs), "replicationFactor", c.cfg.Static.ReplicationFactor)
	default:
		topo = topology.New()
		klog.InfoS("Starting uninitialized, waiting for topology", "node", c.cfg.LocalNode)
	}

	c.store.SetProvider(c)
	c.actor.Start()
	c.state.Store(int32(ClusterStateOK))

	_, err = actor.Call(ctx, c.actor, func() (struct{}, error) {
		c.publish(topo)
		c.broadcast(topo)
		c.maybeApply()
		return struct{}{}, nil
	})
	return err
}

// Stop cancels an in-flight operation and stops the actor. The store is left
// open.
func (c *Cluster) Stop() error {
	c.cancel()
	c.actor.Stop()
	c.state.Store(int32(ClusterStateDown))
	return nil
}

func (c *Cluster) LocalNode() topology.NodeID { return c.cfg.LocalNode }

func (c *Cluster) State() ClusterState { return ClusterState(c.state.Load()) }

// Topology returns the last published snapshot.
func (c *Cluster) Topology() topology.Topology { return *c.current.Load() }

// CurrentTopology implements state.TopologyProvider.
func (c *Cluster) CurrentTopology() topology.Topology { return c.Topology() }

// LastError returns the error that halted the change plan, if any.
func (c *Cluster) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

func (c *Cluster) setLastError(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

// SubmitOperations validates ops as a whole and starts them as a new change
// plan. It returns the topology the plan was started in.
func (c *Cluster) SubmitOperations(ctx context.Context, ops []topology.ChangeOperation) (topology.Topology, error) {
	return call(ctx, c, func() (topology.Topology, error) {
		if c.topo.HasPendingChanges() {
			return c.topo, zerrors.ErrChangePlanInProgress
		}
		if _, err := changes.Simulate(c.topo, ops); err != nil {
			return c.topo, err
		}
		next, err := c.topo.StartChangePlan(ops)
		if err != nil {
			return c.topo, err
		}
		if err := c.commit(next); err != nil {
			return c.topo, err
		}
		klog.InfoS("Started change plan", "node", c.cfg.LocalNode, "version", next.Version(), "operations", len(ops))
		c.resume()
		return next, nil
	})
}

// Retry re-runs a halted operation.
func (c *Cluster) Retry(ctx context.Context) error {
	_, err := call(ctx, c, func() (struct{}, error) {
		if !c.topo.HasPendingChanges() {
			return struct{}{}, zerrors.ErrNoChangePlan
		}
		c.resume()
		return struct{}{}, nil
	})
	return err
}

// CancelChangePlan drops the remaining operations of the current plan and
// cancels the executor call in flight, if any. Recorded intents are kept.
func (c *Cluster) CancelChangePlan(ctx context.Context) (topology.Topology, error) {
	return call(ctx, c, func() (topology.Topology, error) {
		next, err := c.topo.CancelChangePlan()
		if err != nil {
			return c.topo, err
		}
		if err := c.commit(next); err != nil {
			return c.topo, err
		}
		if c.cancelOp != nil {
			c.cancelOp()
		}
		klog.InfoS("Cancelled change plan", "node", c.cfg.LocalNode, "version", next.Version())
		c.haltedOp = nil
		c.setLastError(nil)
		return next, nil
	})
}

// OnGossip merges a topology received from a peer.
func (c *Cluster) OnGossip(remote topology.Topology) error {
	if c.State() == ClusterStateDown {
		return zerrors.ErrNotStarted
	}
	return c.actor.Run(func() { c.merge(remote) })
}

func call[T any](ctx context.Context, c *Cluster, fn func() (T, error)) (T, error) {
	switch c.State() {
	case ClusterStateDown:
		var zero T
		return zero, zerrors.ErrNotStarted
	case ClusterStateFail:
		var zero T
		return zero, zerrors.ErrClusterFailed
	}
	return actor.Call(ctx, c.actor, fn)
}

func (c *Cluster) merge(remote topology.Topology) {
	merged, err := topology.Merge(c.topo, remote)
	if err != nil {
		metrics.RecordMergeConflict()
		klog.ErrorS(err, "Rejected conflicting topology", "node", c.cfg.LocalNode, "version", remote.Version())
		return
	}
	if merged.Equal(c.topo) {
		return
	}

	klog.V(2).InfoS("Adopted topology from gossip", "node", c.cfg.LocalNode, "from", c.topo.Version(), "to", merged.Version())
	c.publish(merged)
	c.broadcast(merged)
	c.store.MarkDirty()
	c.maybeApply()
}

func (c *Cluster) resume() {
	c.haltedOp = nil
	c.setLastError(nil)
	c.maybeApply()
}

// maybeApply starts the head operation if it targets this node and nothing
// is in flight.
func (c *Cluster) maybeApply() {
	if c.applying || c.State() == ClusterStateFail {
		return
	}
	op, ok := c.topo.PendingOperation()
	if !ok || op.Target() != c.cfg.LocalNode {
		return
	}
	if c.haltedOp != nil && topology.OperationsEqual(c.haltedOp, op) {
		return
	}
	c.haltedOp = nil

	applier, err := changes.New(op, c.executor)
	if err != nil {
		c.halt(op, err)
		return
	}
	intent, err := applier.Init(c.topo)
	if err != nil {
		c.halt(op, err)
		return
	}
	if !topology.IsIdentity(intent) {
		next, err := c.topo.ApplyTransform(intent)
		if err != nil {
			c.halt(op, err)
			return
		}
		if err := c.commit(next); err != nil {
			c.halt(op, err)
			return
		}
	}

	klog.V(2).InfoS("Applying operation", "node", c.cfg.LocalNode, "operation", op)
	c.applying = true
	started := time.Now()
	ctx, cancel := c.operationContext()
	c.cancelOp = cancel
	applier.Apply(ctx).OnComplete(c.actor, func(finish topology.Transform, err error) {
		cancel()
		c.applying = false
		c.cancelOp = nil
		c.onApplied(op, started, finish, err)
	})
}

func (c *Cluster) operationContext() (context.Context, context.CancelFunc) {
	if c.cfg.OperationTimeout > 0 {
		return context.WithTimeout(c.ctx, c.cfg.OperationTimeout)
	}
	return context.WithCancel(c.ctx)
}

func (c *Cluster) onApplied(op topology.ChangeOperation, started time.Time, finish topology.Transform, err error) {
	metrics.RecordChangeOperation(op.Kind(), time.Since(started), err == nil)

	head, ok := c.topo.PendingOperation()
	if !ok || !topology.OperationsEqual(head, op) {
		klog.InfoS("Change plan changed while applying, dropping result", "node", c.cfg.LocalNode, "operation", op, "err", err)
		c.maybeApply()
		return
	}
	if err != nil {
		c.halt(op, err)
		return
	}

	next, err := c.topo.AdvanceChangePlan(finish)
	if err != nil {
		c.halt(op, err)
		return
	}
	if err := c.commit(next); err != nil {
		c.halt(op, err)
		return
	}
	klog.InfoS("Applied operation", "node", c.cfg.LocalNode, "operation", op, "version", next.Version())
	c.maybeApply()
}

func (c *Cluster) halt(op topology.ChangeOperation, err error) {
	c.haltedOp = op
	c.setLastError(err)
	if errors.Is(err, zerrors.ErrIllegalTransition) {
		c.state.Store(int32(ClusterStateFail))
		klog.ErrorS(err, "Illegal transition, no further operations are applied", "node", c.cfg.LocalNode, "operation", op)
		return
	}
	klog.ErrorS(err, "Operation failed, change plan halted", "node", c.cfg.LocalNode, "operation", op)
}

// commit persists t, publishes it and tells peers.
func (c *Cluster) commit(t topology.Topology) error {
	if err := c.store.Save(t); err != nil {
		return err
	}
	c.publish(t)
	c.broadcast(t)
	return nil
}

func (c *Cluster) publish(t topology.Topology) {
	c.topo = t
	c.current.Store(&t)
	metrics.RecordTopology(t)

	c.mu.RLock()
	listeners := c.listeners
	c.mu.RUnlock()
	for _, l := range listeners {
		l(t)
	}
}

func (c *Cluster) broadcast(t topology.Topology) {
	if c.gossiper != nil && t.IsInitialized() {
		c.gossiper.Broadcast(t)
	}
}
