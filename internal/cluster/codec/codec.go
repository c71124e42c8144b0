// Package codec serializes topologies, gossip envelopes and management
// messages using the protobuf wire format. Map entries are written in sorted
// key order, so equal values always encode to equal bytes.
package codec

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	zerrors "github.com/yevgenykuz/zeebe/pkg/errors"
)

const magic byte = 0x5a

// MessageType is the second header byte of every encoded message.
type MessageType uint8

const (
	TypeTopology MessageType = iota + 1
	TypeGossipEnvelope
	TypeAddNodesRequest
	TypeRemoveNodesRequest
	TypeReassignPartitionsRequest
	TypeJoinPartitionRequest
	TypeLeavePartitionRequest
	TypeChangeResponse
)

func (t MessageType) String() string {
	switch t {
	case TypeTopology:
		return "TOPOLOGY"
	case TypeGossipEnvelope:
		return "GOSSIP"
	case TypeAddNodesRequest:
		return "ADD_NODES"
	case TypeRemoveNodesRequest:
		return "REMOVE_NODES"
	case TypeReassignPartitionsRequest:
		return "REASSIGN_PARTITIONS"
	case TypeJoinPartitionRequest:
		return "JOIN_PARTITION"
	case TypeLeavePartitionRequest:
		return "LEAVE_PARTITION"
	case TypeChangeResponse:
		return "CHANGE_RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// FormatError reports input that is not a valid encoding.
type FormatError struct {
	Message string
	Reason  string
}

func (e *FormatError) Error() string {
	if e.Message == "" {
		return "malformed input: " + e.Reason
	}
	return fmt.Sprintf("malformed %s: %s", e.Message, e.Reason)
}

func (e *FormatError) Unwrap() error { return zerrors.ErrMalformed }

func malformed(message, format string, args ...any) error {
	return &FormatError{Message: message, Reason: fmt.Sprintf(format, args...)}
}

// PeekType returns the message type of an encoded message.
func PeekType(b []byte) (MessageType, error) {
	if len(b) < 2 {
		return 0, malformed("", "message of %d bytes is shorter than the header", len(b))
	}
	if b[0] != magic {
		return 0, malformed("", "bad magic byte 0x%02x", b[0])
	}
	t := MessageType(b[1])
	if t < TypeTopology || t > TypeChangeResponse {
		return 0, malformed("", "unknown message type %d", b[1])
	}
	return t, nil
}

func header(t MessageType) []byte {
	return []byte{magic, byte(t)}
}

func body(b []byte, want MessageType) ([]byte, error) {
	t, err := PeekType(b)
	if err != nil {
		return nil, err
	}
	if t != want {
		return nil, malformed(want.String(), "unexpected message type %s", t)
	}
	return b[2:], nil
}

// field is a decoded wire field. Only varint and length-delimited fields are
// surfaced; other wire types are skipped.
type field struct {
	num    protowire.Number
	typ    protowire.Type
	varint uint64
	bytes  []byte
}

func (f field) expect(message string, typ protowire.Type) error {
	if f.typ != typ {
		return malformed(message, "field %d has wire type %d, expected %d", f.num, f.typ, typ)
	}
	return nil
}

func (f field) asUint(message string) (uint64, error) {
	return f.varint, f.expect(message, protowire.VarintType)
}

func (f field) asInt32(message string) (int32, error) {
	if err := f.expect(message, protowire.VarintType); err != nil {
		return 0, err
	}
	// Negative values are sign extended to 64 bits by appendInt32.
	if v := int64(f.varint); v < math.MinInt32 || v > math.MaxInt32 {
		return 0, malformed(message, "field %d overflows int32", f.num)
	}
	return int32(int64(f.varint)), nil
}

func (f field) asBool(message string) (bool, error) {
	return protowire.DecodeBool(f.varint), f.expect(message, protowire.VarintType)
}

func (f field) asString(message string) (string, error) {
	return string(f.bytes), f.expect(message, protowire.BytesType)
}

func (f field) asMessage(message string) ([]byte, error) {
	return f.bytes, f.expect(message, protowire.BytesType)
}

// readFields calls fn for every field of b in order.
func readFields(message string, b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return malformed(message, "%v", protowire.ParseError(n))
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return malformed(message, "%v", protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		if n < 0 {
			return malformed(message, "field %d: %v", num, protowire.ParseError(n))
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	return appendVarint(b, num, uint64(int64(v)))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	return appendVarint(b, num, protowire.EncodeBool(v))
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}
