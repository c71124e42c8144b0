package codec

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
)

// Topology:        1 version, 2 repeated NodeEntry, 3 ChangePlan
// NodeEntry:       1 id, 2 NodeState
// NodeState:       1 lifecycle, 2 repeated PartitionEntry
// PartitionEntry:  1 id, 2 PartitionState
// PartitionState:  1 lifecycle, 2 priority, 3 PartitionConfig
// PartitionConfig: 1 repeated ExporterEntry{1 name, 2 state}
// ChangePlan:      1 repeated pending Operation, 2 repeated completed Operation

// EncodeTopology encodes t with a message header.
func EncodeTopology(t topology.Topology) []byte {
	return appendTopology(header(TypeTopology), t)
}

// DecodeTopology decodes a message produced by EncodeTopology.
func DecodeTopology(b []byte) (topology.Topology, error) {
	payload, err := body(b, TypeTopology)
	if err != nil {
		return topology.Topology{}, err
	}
	return decodeTopology(payload)
}

func appendTopology(b []byte, t topology.Topology) []byte {
	b = appendVarint(b, 1, t.Version())
	b = appendNodes(b, 2, t.Nodes())
	if plan, ok := t.ChangePlan(); ok {
		var p []byte
		for _, op := range plan.Pending() {
			p = appendMessage(p, 1, encodeOperation(op))
		}
		for _, op := range plan.Completed() {
			p = appendMessage(p, 2, encodeOperation(op))
		}
		b = appendMessage(b, 3, p)
	}
	return b
}

func decodeTopology(b []byte) (topology.Topology, error) {
	const msg = "topology"
	var (
		version uint64
		nodes   = topology.Nodes{}
		plan    *topology.ChangePlan
	)
	err := readFields(msg, b, func(f field) (err error) {
		switch f.num {
		case 1:
			version, err = f.asUint(msg)
		case 2:
			err = decodeNodeEntry(msg, f, nodes)
		case 3:
			var p []byte
			if p, err = f.asMessage(msg); err != nil {
				return err
			}
			var decoded topology.ChangePlan
			if decoded, err = decodeChangePlan(p); err != nil {
				return err
			}
			plan = &decoded
		}
		return err
	})
	if err != nil {
		return topology.Topology{}, err
	}
	return topology.NewTopology(version, nodes, plan), nil
}

func decodeChangePlan(b []byte) (topology.ChangePlan, error) {
	const msg = "change plan"
	var pending, completed []topology.ChangeOperation
	err := readFields(msg, b, func(f field) error {
		if f.num != 1 && f.num != 2 {
			return nil
		}
		raw, err := f.asMessage(msg)
		if err != nil {
			return err
		}
		op, err := decodeOperation(raw)
		if err != nil {
			return err
		}
		if f.num == 1 {
			pending = append(pending, op)
		} else {
			completed = append(completed, op)
		}
		return nil
	})
	if err != nil {
		return topology.ChangePlan{}, err
	}
	return topology.NewChangePlan(pending, completed), nil
}

func appendNodes(b []byte, num protowire.Number, nodes topology.Nodes) []byte {
	for _, id := range nodes.IDs() {
		var entry []byte
		entry = appendString(entry, 1, string(id))
		entry = appendMessage(entry, 2, encodeNodeState(nodes[id]))
		b = appendMessage(b, num, entry)
	}
	return b
}

func decodeNodeEntry(parent string, f field, into topology.Nodes) error {
	const msg = "node entry"
	raw, err := f.asMessage(parent)
	if err != nil {
		return err
	}
	var (
		id       topology.NodeID
		hasID    bool
		state    topology.NodeState
		hasState bool
	)
	err = readFields(msg, raw, func(f field) (err error) {
		switch f.num {
		case 1:
			var s string
			s, err = f.asString(msg)
			id = topology.NodeID(s)
			hasID = true
		case 2:
			var p []byte
			if p, err = f.asMessage(msg); err != nil {
				return err
			}
			state, err = decodeNodeState(p)
			hasState = true
		}
		return err
	})
	if err != nil {
		return err
	}
	if !hasID {
		return malformed(msg, "missing node id")
	}
	if !hasState {
		return malformed(msg, "missing state of node %s", id)
	}
	if _, dup := into[id]; dup {
		return malformed(msg, "duplicate node %s", id)
	}
	into[id] = state
	return nil
}

func encodeNodeState(n topology.NodeState) []byte {
	b := appendVarint(nil, 1, uint64(n.Lifecycle()))
	for _, pid := range n.PartitionIDs() {
		p, _ := n.Partition(pid)
		var entry []byte
		entry = appendInt32(entry, 1, int32(pid))
		entry = appendMessage(entry, 2, encodePartitionState(p))
		b = appendMessage(b, 2, entry)
	}
	return b
}

func decodeNodeState(b []byte) (topology.NodeState, error) {
	const msg = "node state"
	var lifecycle topology.NodeLifecycle
	partitions := make(map[topology.PartitionID]topology.PartitionState)
	err := readFields(msg, b, func(f field) error {
		switch f.num {
		case 1:
			v, err := f.asUint(msg)
			if err != nil {
				return err
			}
			lifecycle = topology.NodeLifecycle(v)
			if !lifecycle.Valid() || uint64(lifecycle) != v {
				return malformed(msg, "unknown node lifecycle %d", v)
			}
		case 2:
			return decodePartitionEntry(msg, f, partitions)
		}
		return nil
	})
	if err != nil {
		return topology.NodeState{}, err
	}
	if lifecycle == 0 {
		return topology.NodeState{}, malformed(msg, "missing lifecycle")
	}
	return topology.NewNodeState(lifecycle, partitions), nil
}

func decodePartitionEntry(parent string, f field, into map[topology.PartitionID]topology.PartitionState) error {
	const msg = "partition entry"
	raw, err := f.asMessage(parent)
	if err != nil {
		return err
	}
	var (
		id       topology.PartitionID
		state    topology.PartitionState
		hasState bool
	)
	err = readFields(msg, raw, func(f field) (err error) {
		switch f.num {
		case 1:
			var v int32
			v, err = f.asInt32(msg)
			id = topology.PartitionID(v)
		case 2:
			var p []byte
			if p, err = f.asMessage(msg); err != nil {
				return err
			}
			state, err = decodePartitionState(p)
			hasState = true
		}
		return err
	})
	if err != nil {
		return err
	}
	if id < 1 || id > topology.MaxPartitions {
		return malformed(msg, "partition id %d out of range", id)
	}
	if !hasState {
		return malformed(msg, "missing state of partition %d", id)
	}
	if _, dup := into[id]; dup {
		return malformed(msg, "duplicate partition %d", id)
	}
	into[id] = state
	return nil
}

func encodePartitionState(p topology.PartitionState) []byte {
	b := appendVarint(nil, 1, uint64(p.Lifecycle()))
	b = appendInt32(b, 2, p.Priority())
	var config []byte
	for _, name := range p.Config().ExporterNames() {
		state, _ := p.Config().Exporter(name)
		var entry []byte
		entry = appendString(entry, 1, name)
		entry = appendVarint(entry, 2, uint64(state))
		config = appendMessage(config, 1, entry)
	}
	return appendMessage(b, 3, config)
}

func decodePartitionState(b []byte) (topology.PartitionState, error) {
	const msg = "partition state"
	var (
		lifecycle topology.PartitionLifecycle
		priority  int32
		exporters = make(map[string]topology.ExporterState)
	)
	err := readFields(msg, b, func(f field) (err error) {
		switch f.num {
		case 1:
			var v uint64
			if v, err = f.asUint(msg); err != nil {
				return err
			}
			lifecycle = topology.PartitionLifecycle(v)
			if !lifecycle.Valid() || uint64(lifecycle) != v {
				return malformed(msg, "unknown partition lifecycle %d", v)
			}
		case 2:
			priority, err = f.asInt32(msg)
		case 3:
			var p []byte
			if p, err = f.asMessage(msg); err != nil {
				return err
			}
			err = decodePartitionConfig(p, exporters)
		}
		return err
	})
	if err != nil {
		return topology.PartitionState{}, err
	}
	if lifecycle == 0 {
		return topology.PartitionState{}, malformed(msg, "missing lifecycle")
	}
	return topology.NewPartitionState(lifecycle, priority, topology.NewPartitionConfig(exporters)), nil
}

func decodePartitionConfig(b []byte, into map[string]topology.ExporterState) error {
	const msg = "exporter entry"
	return readFields("partition config", b, func(f field) error {
		if f.num != 1 {
			return nil
		}
		raw, err := f.asMessage(msg)
		if err != nil {
			return err
		}
		var (
			name    string
			hasName bool
			state   topology.ExporterState
		)
		err = readFields(msg, raw, func(f field) (err error) {
			switch f.num {
			case 1:
				name, err = f.asString(msg)
				hasName = true
			case 2:
				var v uint64
				if v, err = f.asUint(msg); err != nil {
					return err
				}
				state = topology.ExporterState(v)
				if !state.Valid() || uint64(state) != v {
					return malformed(msg, "unknown exporter state %d", v)
				}
			}
			return err
		})
		if err != nil {
			return err
		}
		if !hasName || state == 0 {
			return malformed(msg, "exporter entry needs a name and a state")
		}
		into[name] = state
		return nil
	})
}
