package metrics

import (
	"runtime"
	"sync"
	"time"

	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
)

// TopologySource returns the current local topology.
type TopologySource func() topology.Topology

// Collector collects periodic metrics
type Collector struct {
	startTime time.Time
	mu        sync.RWMutex
	source    TopologySource
}

// NewCollector creates a collector
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
	}
}

// SetTopologySource sets where topology gauges are read from.
func (c *Collector) SetTopologySource(source TopologySource) {
	c.mu.Lock()
	c.source = source
	c.mu.Unlock()
}

// Collect collects periodic metrics
func (c *Collector) Collect() {
	c.collectMemory()
	c.collectUptime()
	c.collectTopology()
}

func (c *Collector) collectMemory() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	MemoryUsage.WithLabelValues("alloc").Set(float64(m.Alloc))
	MemoryUsage.WithLabelValues("sys").Set(float64(m.Sys))
	MemoryUsage.WithLabelValues("heap_inuse").Set(float64(m.HeapInuse))
}

func (c *Collector) collectUptime() {
	Uptime.Set(time.Since(c.startTime).Seconds())
}

func (c *Collector) collectTopology() {
	c.mu.RLock()
	source := c.source
	c.mu.RUnlock()
	if source != nil {
		RecordTopology(source())
	}
}

// RecordTopology updates the topology gauges.
func RecordTopology(t topology.Topology) {
	TopologyVersion.Set(float64(t.Version()))

	pending := 0
	if plan, ok := t.ChangePlan(); ok {
		pending = len(plan.Pending())
	}
	PendingOperations.Set(float64(pending))

	counts := make(map[topology.NodeLifecycle]int)
	for _, n := range t.Nodes() {
		counts[n.Lifecycle()]++
	}
	for l := topology.NodeUninitialized; l <= topology.NodeLeft; l++ {
		TopologyNodes.WithLabelValues(l.String()).Set(float64(counts[l]))
	}
}

// RecordChangeOperation records an executed change operation
func RecordChangeOperation(kind topology.OperationKind, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "failed"
	}

	ChangeOperationsTotal.WithLabelValues(kind.String(), status).Inc()
	ChangeOperationDuration.WithLabelValues(kind.String()).Observe(duration.Seconds())
}

// RecordGossip records a sent or received gossip message
func RecordGossip(direction string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	GossipMessagesTotal.WithLabelValues(direction, result).Inc()
}

// RecordMergeConflict records a conflicting snapshot
func RecordMergeConflict() {
	MergeConflictsTotal.Inc()
}

// RecordCommand records command execution
func RecordCommand(cmd string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}

	CommandsTotal.WithLabelValues(cmd, status).Inc()
	CommandDuration.WithLabelValues(cmd).Observe(duration.Seconds())
}

// RecordConnection records connection count change
func RecordConnection(delta int) {
	ConnectionsTotal.Add(float64(delta))
}
