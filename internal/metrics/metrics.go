package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "zeebe"
	subsystem = "cluster"
)

var (
	// TopologyVersion is the version of the local topology
	TopologyVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "topology_version",
			Help:      "Version of the local cluster topology",
		},
	)

	// ChangeOperationsTotal counts applied change operations
	ChangeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "change_operations_total",
			Help:      "Total number of change operations executed by this node",
		},
		[]string{"kind", "status"}, // status: success/failed
	)

	// ChangeOperationDuration measures operation latency
	ChangeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "change_operation_duration_seconds",
			Help:      "Change operation latency in seconds",
			Buckets:   []float64{.001, .01, .1, .5, 1, 5, 15, 60, 300},
		},
		[]string{"kind"},
	)

	// PendingOperations tracks operations left in the change plan
	PendingOperations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pending_operations",
			Help:      "Number of pending operations in the current change plan",
		},
	)

	// GossipMessagesTotal counts gossip traffic
	GossipMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "gossip_messages_total",
			Help:      "Total number of gossip messages",
		},
		[]string{"direction", "result"}, // direction: sent/received
	)

	// MergeConflictsTotal counts equal-version snapshots with different content
	MergeConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "merge_conflicts_total",
			Help:      "Total number of received topologies that conflict with the local one",
		},
	)

	// TopologyNodes tracks nodes per lifecycle
	TopologyNodes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "topology_nodes",
			Help:      "Number of nodes in the topology per lifecycle",
		},
		[]string{"lifecycle"},
	)

	// CommandsTotal counts management commands
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Total number of management commands processed",
		},
		[]string{"cmd", "status"},
	)

	// CommandDuration measures management command latency
	CommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Management command latency in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"cmd"},
	)

	// ConnectionsTotal tracks active management connections
	ConnectionsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of management client connections",
		},
	)

	// MemoryUsage tracks memory usage
	MemoryUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_bytes",
			Help:      "Memory usage in bytes",
		},
		[]string{"type"},
	)

	// Info exposes build info
	Info = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "info",
			Help:      "Node info",
		},
		[]string{"version", "go_version", "node_id"},
	)

	// Uptime tracks uptime
	Uptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Node uptime in seconds",
		},
	)
)

// InitInfo initializes info metric
func InitInfo(version, goVersion, nodeID string) {
	Info.WithLabelValues(version, goVersion, nodeID).Set(1)
}
