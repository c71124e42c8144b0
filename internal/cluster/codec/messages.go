package codec

import (
	"fmt"

	"github.com/yevgenykuz/zeebe/internal/cluster/api"
	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
)

// GossipEnvelope: 1 Topology (absent when the sender has none)
//
// AddNodes, RemoveNodes, ReassignPartitions: 1 repeated node id, 2 dry run
// JoinPartition:  1 node, 2 partition, 3 priority, 4 dry run
// LeavePartition: 1 node, 2 partition, 3 dry run
// ChangeResponse: 1 version, 2 repeated expected NodeEntry,
//                 3 repeated changed NodeEntry, 4 repeated Operation

func EncodeGossipEnvelope(e api.GossipEnvelope) []byte {
	b := header(TypeGossipEnvelope)
	if e.Topology != nil {
		b = appendMessage(b, 1, appendTopology(nil, *e.Topology))
	}
	return b
}

func DecodeGossipEnvelope(b []byte) (api.GossipEnvelope, error) {
	const msg = "gossip envelope"
	payload, err := body(b, TypeGossipEnvelope)
	if err != nil {
		return api.GossipEnvelope{}, err
	}
	var e api.GossipEnvelope
	err = readFields(msg, payload, func(f field) error {
		if f.num != 1 {
			return nil
		}
		raw, err := f.asMessage(msg)
		if err != nil {
			return err
		}
		t, err := decodeTopology(raw)
		if err != nil {
			return err
		}
		e.Topology = &t
		return nil
	})
	if err != nil {
		return api.GossipEnvelope{}, err
	}
	return e, nil
}

func EncodeAddNodesRequest(r api.AddNodesRequest) []byte {
	return appendNodeList(header(TypeAddNodesRequest), r.NodeIDs, r.DryRun)
}

func EncodeRemoveNodesRequest(r api.RemoveNodesRequest) []byte {
	return appendNodeList(header(TypeRemoveNodesRequest), r.NodeIDs, r.DryRun)
}

func EncodeReassignPartitionsRequest(r api.ReassignPartitionsRequest) []byte {
	return appendNodeList(header(TypeReassignPartitionsRequest), r.NodeIDs, r.DryRun)
}

func DecodeAddNodesRequest(b []byte) (api.AddNodesRequest, error) {
	ids, dry, err := decodeNodeList(b, TypeAddNodesRequest)
	return api.AddNodesRequest{NodeIDs: ids, DryRun: dry}, err
}

func DecodeRemoveNodesRequest(b []byte) (api.RemoveNodesRequest, error) {
	ids, dry, err := decodeNodeList(b, TypeRemoveNodesRequest)
	return api.RemoveNodesRequest{NodeIDs: ids, DryRun: dry}, err
}

func DecodeReassignPartitionsRequest(b []byte) (api.ReassignPartitionsRequest, error) {
	ids, dry, err := decodeNodeList(b, TypeReassignPartitionsRequest)
	return api.ReassignPartitionsRequest{NodeIDs: ids, DryRun: dry}, err
}

func appendNodeList(b []byte, ids []topology.NodeID, dryRun bool) []byte {
	for _, id := range ids {
		b = appendString(b, 1, string(id))
	}
	return appendBool(b, 2, dryRun)
}

func decodeNodeList(b []byte, t MessageType) ([]topology.NodeID, bool, error) {
	msg := t.String()
	payload, err := body(b, t)
	if err != nil {
		return nil, false, err
	}
	var (
		ids    []topology.NodeID
		dryRun bool
	)
	err = readFields(msg, payload, func(f field) (err error) {
		switch f.num {
		case 1:
			var s string
			s, err = f.asString(msg)
			ids = append(ids, topology.NodeID(s))
		case 2:
			dryRun, err = f.asBool(msg)
		}
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return ids, dryRun, nil
}

func EncodeJoinPartitionRequest(r api.JoinPartitionRequest) []byte {
	b := appendPartitionOp(header(TypeJoinPartitionRequest), r.NodeID, r.PartitionID)
	b = appendInt32(b, 3, r.Priority)
	return appendBool(b, 4, r.DryRun)
}

func DecodeJoinPartitionRequest(b []byte) (api.JoinPartitionRequest, error) {
	var r api.JoinPartitionRequest
	err := decodePartitionRequest(b, TypeJoinPartitionRequest, &r.NodeID, &r.PartitionID, func(f field, msg string) (err error) {
		switch f.num {
		case 3:
			r.Priority, err = f.asInt32(msg)
		case 4:
			r.DryRun, err = f.asBool(msg)
		}
		return err
	})
	if err != nil {
		return api.JoinPartitionRequest{}, err
	}
	return r, nil
}

func EncodeLeavePartitionRequest(r api.LeavePartitionRequest) []byte {
	b := appendPartitionOp(header(TypeLeavePartitionRequest), r.NodeID, r.PartitionID)
	return appendBool(b, 3, r.DryRun)
}

func DecodeLeavePartitionRequest(b []byte) (api.LeavePartitionRequest, error) {
	var r api.LeavePartitionRequest
	err := decodePartitionRequest(b, TypeLeavePartitionRequest, &r.NodeID, &r.PartitionID, func(f field, msg string) (err error) {
		if f.num == 3 {
			r.DryRun, err = f.asBool(msg)
		}
		return err
	})
	if err != nil {
		return api.LeavePartitionRequest{}, err
	}
	return r, nil
}

func decodePartitionRequest(b []byte, t MessageType, node *topology.NodeID, pid *topology.PartitionID, rest func(field, string) error) error {
	msg := t.String()
	payload, err := body(b, t)
	if err != nil {
		return err
	}
	err = readFields(msg, payload, func(f field) (err error) {
		switch f.num {
		case 1:
			var s string
			s, err = f.asString(msg)
			*node = topology.NodeID(s)
		case 2:
			var v int32
			v, err = f.asInt32(msg)
			*pid = topology.PartitionID(v)
		default:
			err = rest(f, msg)
		}
		return err
	})
	if err != nil {
		return err
	}
	if *node == "" {
		return malformed(msg, "missing node id")
	}
	if *pid < 1 || *pid > topology.MaxPartitions {
		return malformed(msg, "partition id %d out of range", *pid)
	}
	return nil
}

func EncodeChangeResponse(r api.ChangeResponse) []byte {
	b := appendVarint(header(TypeChangeResponse), 1, r.Version)
	b = appendNodes(b, 2, r.ExpectedNodes)
	b = appendNodes(b, 3, r.ChangedNodes)
	for _, op := range r.Operations {
		b = appendMessage(b, 4, encodeOperation(op))
	}
	return b
}

func DecodeChangeResponse(b []byte) (api.ChangeResponse, error) {
	const msg = "change response"
	payload, err := body(b, TypeChangeResponse)
	if err != nil {
		return api.ChangeResponse{}, err
	}
	r := api.ChangeResponse{ExpectedNodes: topology.Nodes{}, ChangedNodes: topology.Nodes{}}
	err = readFields(msg, payload, func(f field) (err error) {
		switch f.num {
		case 1:
			r.Version, err = f.asUint(msg)
		case 2:
			err = decodeNodeEntry(msg, f, r.ExpectedNodes)
		case 3:
			err = decodeNodeEntry(msg, f, r.ChangedNodes)
		case 4:
			var raw []byte
			if raw, err = f.asMessage(msg); err != nil {
				return err
			}
			var op topology.ChangeOperation
			if op, err = decodeOperation(raw); err != nil {
				return err
			}
			r.Operations = append(r.Operations, op)
		}
		return err
	})
	if err != nil {
		return api.ChangeResponse{}, err
	}
	return r, nil
}

// DecodeRequest decodes any management request, dispatching on the header.
func DecodeRequest(b []byte) (api.Request, error) {
	t, err := PeekType(b)
	if err != nil {
		return nil, err
	}
	switch t {
	case TypeAddNodesRequest:
		return DecodeAddNodesRequest(b)
	case TypeRemoveNodesRequest:
		return DecodeRemoveNodesRequest(b)
	case TypeReassignPartitionsRequest:
		return DecodeReassignPartitionsRequest(b)
	case TypeJoinPartitionRequest:
		return DecodeJoinPartitionRequest(b)
	case TypeLeavePartitionRequest:
		return DecodeLeavePartitionRequest(b)
	default:
		return nil, malformed("", "%s is not a request", t)
	}
}

// EncodeRequest encodes any management request.
func EncodeRequest(r api.Request) ([]byte, error) {
	switch req := r.(type) {
	case api.AddNodesRequest:
		return EncodeAddNodesRequest(req), nil
	case api.RemoveNodesRequest:
		return EncodeRemoveNodesRequest(req), nil
	case api.ReassignPartitionsRequest:
		return EncodeReassignPartitionsRequest(req), nil
	case api.JoinPartitionRequest:
		return EncodeJoinPartitionRequest(req), nil
	case api.LeavePartitionRequest:
		return EncodeLeavePartitionRequest(req), nil
	default:
		return nil, fmt.Errorf("unsupported request %T", r)
	}
}
