package topology

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// PartitionLifecycle is the hosting state of a partition on one node.
type PartitionLifecycle uint8

const (
	PartitionBootstrapping PartitionLifecycle = iota + 1
	PartitionJoining
	PartitionActive
	PartitionLeaving
)

func (l PartitionLifecycle) String() string {
	switch l {
	case PartitionBootstrapping:
		return "BOOTSTRAPPING"
	case PartitionJoining:
		return "JOINING"
	case PartitionActive:
		return "ACTIVE"
	case PartitionLeaving:
		return "LEAVING"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether l is a known lifecycle.
func (l PartitionLifecycle) Valid() bool {
	return l >= PartitionBootstrapping && l <= PartitionLeaving
}

// ExporterState tells whether an exporter runs on a partition.
type ExporterState uint8

const (
	ExporterEnabled ExporterState = iota + 1
	ExporterDisabled
)

func (s ExporterState) String() string {
	switch s {
	case ExporterEnabled:
		return "ENABLED"
	case ExporterDisabled:
		return "DISABLED"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether s is a known exporter state.
func (s ExporterState) Valid() bool {
	return s == ExporterEnabled || s == ExporterDisabled
}

// PartitionConfig carries per-partition settings that are replicated with the
// topology.
type PartitionConfig struct {
	exporters map[string]ExporterState
}

// NewPartitionConfig creates a config with the given exporter states.
func NewPartitionConfig(exporters map[string]ExporterState) PartitionConfig {
	c := maps.Clone(exporters)
	if c == nil {
		c = make(map[string]ExporterState)
	}
	return PartitionConfig{exporters: c}
}

// DefaultPartitionConfig returns a config without exporters.
func DefaultPartitionConfig() PartitionConfig {
	return NewPartitionConfig(nil)
}

// Exporters returns a copy of the exporter states.
func (c PartitionConfig) Exporters() map[string]ExporterState {
	return NewPartitionConfig(c.exporters).exporters
}

// Exporter returns the state of one exporter.
func (c PartitionConfig) Exporter(name string) (ExporterState, bool) {
	s, ok := c.exporters[name]
	return s, ok
}

// ExporterNames returns the configured exporter names in sorted order.
func (c PartitionConfig) ExporterNames() []string {
	names := maps.Keys(c.exporters)
	slices.Sort(names)
	return names
}

// WithExporter returns a copy of c with the exporter set to state.
func (c PartitionConfig) WithExporter(name string, state ExporterState) PartitionConfig {
	next := NewPartitionConfig(c.exporters)
	next.exporters[name] = state
	return next
}

// Equal reports whether both configs hold the same exporter states.
func (c PartitionConfig) Equal(o PartitionConfig) bool {
	return maps.Equal(c.exporters, o.exporters)
}

func (c PartitionConfig) normalized() PartitionConfig {
	if c.exporters == nil {
		return DefaultPartitionConfig()
	}
	return c
}

// PartitionState is the state of a partition on a node. The host with the
// highest priority among a partition's active hosts is its primary.
type PartitionState struct {
	lifecycle PartitionLifecycle
	priority  int32
	config    PartitionConfig
}

// NewPartitionState creates a partition state in an arbitrary lifecycle.
func NewPartitionState(lifecycle PartitionLifecycle, priority int32, config PartitionConfig) PartitionState {
	return PartitionState{lifecycle: lifecycle, priority: priority, config: config.normalized()}
}

// Bootstrapping creates the state of a partition being created on a node.
func Bootstrapping(priority int32, config PartitionConfig) PartitionState {
	return NewPartitionState(PartitionBootstrapping, priority, config)
}

// Joining creates the state of a node joining an existing partition.
func Joining(priority int32, config PartitionConfig) PartitionState {
	return NewPartitionState(PartitionJoining, priority, config)
}

// Active creates the state of a partition that is fully hosted.
func Active(priority int32, config PartitionConfig) PartitionState {
	return NewPartitionState(PartitionActive, priority, config)
}

func (p PartitionState) Lifecycle() PartitionLifecycle { return p.lifecycle }
func (p PartitionState) Priority() int32              { return p.priority }
func (p PartitionState) Config() PartitionConfig      { return p.config }

// ToActive finishes a bootstrap or a join.
func (p PartitionState) ToActive() (PartitionState, error) {
	if p.lifecycle != PartitionBootstrapping && p.lifecycle != PartitionJoining {
		return p, p.illegal(PartitionActive)
	}
	p.lifecycle = PartitionActive
	return p, nil
}

// ToLeaving marks an active partition as leaving.
func (p PartitionState) ToLeaving() (PartitionState, error) {
	if p.lifecycle != PartitionActive {
		return p, p.illegal(PartitionLeaving)
	}
	p.lifecycle = PartitionLeaving
	return p, nil
}

// WithPriority returns p with a new priority and unchanged lifecycle.
func (p PartitionState) WithPriority(priority int32) PartitionState {
	p.priority = priority
	return p
}

// WithConfig returns p with a new config.
func (p PartitionState) WithConfig(config PartitionConfig) PartitionState {
	p.config = config.normalized()
	return p
}

// Equal reports whether both states are identical.
func (p PartitionState) Equal(o PartitionState) bool {
	return p.lifecycle == o.lifecycle && p.priority == o.priority && p.config.Equal(o.config)
}

func (p PartitionState) illegal(to PartitionLifecycle) error {
	return &IllegalTransitionError{Entity: "partition", From: p.lifecycle.String(), To: to.String()}
}
