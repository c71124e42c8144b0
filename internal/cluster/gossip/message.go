package gossip

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/yevgenykuz/zeebe/internal/cluster/api"
	"github.com/yevgenykuz/zeebe/internal/cluster/codec"
	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
	zerrors "github.com/yevgenykuz/zeebe/pkg/errors"
)

type MessageType uint8

const (
	MsgPush MessageType = iota + 1
	MsgReply
)

func (t MessageType) String() string {
	switch t {
	case MsgPush:
		return "PUSH"
	case MsgReply:
		return "REPLY"
	default:
		return "UNKNOWN"
	}
}

const (
	fieldID       protowire.Number = 1
	fieldSender   protowire.Number = 2
	fieldEnvelope protowire.Number = 3
)

// Message is one gossip frame: the sender's current topology wrapped in a
// codec envelope. A push is answered with a reply carrying the receiver's
// topology.
type Message struct {
	Type     MessageType
	ID       uuid.UUID
	Sender   topology.NodeID
	Envelope api.GossipEnvelope
}

var ErrInvalidMessage = fmt.Errorf("invalid gossip message: %w", zerrors.ErrMalformed)

func newMessage(typ MessageType, sender topology.NodeID, t *topology.Topology) *Message {
	return &Message{Type: typ, ID: uuid.New(), Sender: sender, Envelope: api.GossipEnvelope{Topology: t}}
}

func (m *Message) Encode() []byte {
	buf := []byte{byte(m.Type)}
	buf = protowire.AppendTag(buf, fieldID, protowire.BytesType)
	buf = protowire.AppendBytes(buf, m.ID[:])
	buf = protowire.AppendTag(buf, fieldSender, protowire.BytesType)
	buf = protowire.AppendString(buf, string(m.Sender))
	buf = protowire.AppendTag(buf, fieldEnvelope, protowire.BytesType)
	buf = protowire.AppendBytes(buf, codec.EncodeGossipEnvelope(m.Envelope))
	return buf
}

func Decode(data []byte) (*Message, error) {
	if len(data) < 1 {
		return nil, ErrInvalidMessage
	}
	m := &Message{Type: MessageType(data[0])}
	if m.Type != MsgPush && m.Type != MsgReply {
		return nil, fmt.Errorf("type %d: %w", data[0], ErrInvalidMessage)
	}

	var envelope []byte
	b := data[1:]
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("tag: %w", ErrInvalidMessage)
		}
		b = b[n:]
		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("field %d: %w", num, ErrInvalidMessage)
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, fmt.Errorf("field %d: %w", num, ErrInvalidMessage)
		}
		b = b[n:]
		switch num {
		case fieldID:
			id, err := uuid.FromBytes(v)
			if err != nil {
				return nil, errors.Join(ErrInvalidMessage, err)
			}
			m.ID = id
		case fieldSender:
			m.Sender = topology.NodeID(v)
		case fieldEnvelope:
			envelope = v
		}
	}
	if envelope == nil {
		return nil, fmt.Errorf("missing envelope: %w", ErrInvalidMessage)
	}
	env, err := codec.DecodeGossipEnvelope(envelope)
	if err != nil {
		return nil, err
	}
	m.Envelope = env
	return m, nil
}
