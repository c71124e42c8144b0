package codec

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
)

// Operation is a oneof: the field number selects the variant.
//
//	1 NodeJoin{1 node}
//	2 NodeLeave{1 node}
//	3 NodeRemove{1 node, 2 node to remove, 3 force}
//	4 PartitionBootstrap{1 node, 2 partition, 3 priority}
//	5 PartitionJoin{1 node, 2 partition, 3 priority}
//	6 PartitionLeave{1 node, 2 partition}
//	7 PartitionReconfigurePriority{1 node, 2 partition, 3 priority}
//	8 PartitionForceReconfigure{1 node, 2 partition, 3 repeated member}
func encodeOperation(op topology.ChangeOperation) []byte {
	var v []byte
	switch o := op.(type) {
	case topology.NodeJoin:
		v = appendString(v, 1, string(o.NodeID))
	case topology.NodeLeave:
		v = appendString(v, 1, string(o.NodeID))
	case topology.NodeRemove:
		v = appendString(v, 1, string(o.NodeID))
		v = appendString(v, 2, string(o.NodeToRemove))
		v = appendBool(v, 3, o.Force)
	case topology.PartitionBootstrap:
		v = appendPartitionOp(v, o.NodeID, o.PartitionID)
		v = appendInt32(v, 3, o.Priority)
	case topology.PartitionJoin:
		v = appendPartitionOp(v, o.NodeID, o.PartitionID)
		v = appendInt32(v, 3, o.Priority)
	case topology.PartitionLeave:
		v = appendPartitionOp(v, o.NodeID, o.PartitionID)
	case topology.PartitionReconfigurePriority:
		v = appendPartitionOp(v, o.NodeID, o.PartitionID)
		v = appendInt32(v, 3, o.Priority)
	case topology.PartitionForceReconfigure:
		v = appendPartitionOp(v, o.NodeID, o.PartitionID)
		for _, m := range o.Members {
			v = appendString(v, 3, string(m))
		}
	}
	return appendMessage(nil, protowire.Number(op.Kind()), v)
}

func appendPartitionOp(b []byte, node topology.NodeID, pid topology.PartitionID) []byte {
	b = appendString(b, 1, string(node))
	return appendInt32(b, 2, int32(pid))
}

// operationFields holds the union of all variant fields.
type operationFields struct {
	node      topology.NodeID
	partition topology.PartitionID
	other     topology.NodeID
	priority  int32
	force     bool
	members   []topology.NodeID
}

func decodeOperation(b []byte) (topology.ChangeOperation, error) {
	const msg = "operation"
	var (
		kind topology.OperationKind
		raw  []byte
	)
	err := readFields(msg, b, func(f field) (err error) {
		if kind != 0 {
			return malformed(msg, "more than one variant set")
		}
		if f.num < 1 || f.num > protowire.Number(topology.KindPartitionForceReconfigure) {
			return malformed(msg, "unknown operation %d", f.num)
		}
		kind = topology.OperationKind(f.num)
		raw, err = f.asMessage(msg)
		return err
	})
	if err != nil {
		return nil, err
	}
	if kind == 0 {
		return nil, malformed(msg, "no variant set")
	}

	var o operationFields
	err = readFields(kind.String(), raw, func(f field) (err error) {
		var s string
		switch {
		case f.num == 1:
			s, err = f.asString(msg)
			o.node = topology.NodeID(s)
		case f.num == 2 && kind == topology.KindNodeRemove:
			s, err = f.asString(msg)
			o.other = topology.NodeID(s)
		case f.num == 2:
			var v int32
			v, err = f.asInt32(msg)
			o.partition = topology.PartitionID(v)
		case f.num == 3 && kind == topology.KindNodeRemove:
			o.force, err = f.asBool(msg)
		case f.num == 3 && kind == topology.KindPartitionForceReconfigure:
			s, err = f.asString(msg)
			o.members = append(o.members, topology.NodeID(s))
		case f.num == 3:
			o.priority, err = f.asInt32(msg)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if o.node == "" {
		return nil, malformed(kind.String(), "missing node id")
	}

	switch kind {
	case topology.KindNodeJoin:
		return topology.NodeJoin{NodeID: o.node}, nil
	case topology.KindNodeLeave:
		return topology.NodeLeave{NodeID: o.node}, nil
	case topology.KindNodeRemove:
		if o.other == "" {
			return nil, malformed(kind.String(), "missing node to remove")
		}
		return topology.NodeRemove{NodeID: o.node, NodeToRemove: o.other, Force: o.force}, nil
	}

	if o.partition < 1 || o.partition > topology.MaxPartitions {
		return nil, malformed(kind.String(), "partition id %d out of range", o.partition)
	}
	switch kind {
	case topology.KindPartitionBootstrap:
		return topology.PartitionBootstrap{NodeID: o.node, PartitionID: o.partition, Priority: o.priority}, nil
	case topology.KindPartitionJoin:
		return topology.PartitionJoin{NodeID: o.node, PartitionID: o.partition, Priority: o.priority}, nil
	case topology.KindPartitionLeave:
		return topology.PartitionLeave{NodeID: o.node, PartitionID: o.partition}, nil
	case topology.KindPartitionReconfigurePriority:
		return topology.PartitionReconfigurePriority{NodeID: o.node, PartitionID: o.partition, Priority: o.priority}, nil
	default:
		return topology.PartitionForceReconfigure{NodeID: o.node, PartitionID: o.partition, Members: o.members}, nil
	}
}
