// Package gossip disseminates topology snapshots between nodes. Every
// interval, and right after a local change, a node pushes its snapshot to a
// few random peers; the peer answers with its own snapshot so both sides
// converge on the higher version.
package gossip

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/exp/slices"
	"k8s.io/klog/v2"

	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
	"github.com/yevgenykuz/zeebe/internal/metrics"
)

const (
	DefaultInterval    = time.Second
	DefaultFanout      = 2
	DefaultDialTimeout = 2 * time.Second
	MaxMessageSize     = 16 * 1024 * 1024
)

// Handler receives topologies from peers.
type Handler func(t topology.Topology) error

type Config struct {
	NodeID topology.NodeID
	Listen string
	// Peers are the gossip addresses of other nodes.
	Peers       []string
	Interval    time.Duration
	Fanout      int
	DialTimeout time.Duration
}

type Gossip struct {
	cfg     Config
	handler Handler

	peers   []string
	peersMu sync.RWMutex

	latest   atomic.Pointer[topology.Topology]
	trigger  chan struct{}
	listener net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewGossip(cfg Config, handler Handler) *Gossip {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Fanout <= 0 {
		cfg.Fanout = DefaultFanout
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Gossip{
		cfg:     cfg,
		handler: handler,
		peers:   slices.Clone(cfg.Peers),
		trigger: make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (g *Gossip) Start() error {
	listener, err := net.Listen("tcp", g.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", g.cfg.Listen, err)
	}
	g.listener = listener

	klog.InfoS("Gossip listening", "node", g.cfg.NodeID, "addr", listener.Addr().String(), "peers", len(g.Peers()))

	g.wg.Add(1)
	go g.acceptLoop()

	g.wg.Add(1)
	go g.pushLoop()

	return nil
}

func (g *Gossip) Stop() error {
	g.cancel()
	if g.listener != nil {
		g.listener.Close()
	}
	g.wg.Wait()
	return nil
}

// Addr returns the bound listen address. It is nil before Start.
func (g *Gossip) Addr() net.Addr {
	if g.listener == nil {
		return nil
	}
	return g.listener.Addr()
}

// AddPeer adds a gossip address to push to.
func (g *Gossip) AddPeer(addr string) {
	g.peersMu.Lock()
	defer g.peersMu.Unlock()
	if !slices.Contains(g.peers, addr) {
		g.peers = append(g.peers, addr)
	}
}

func (g *Gossip) Peers() []string {
	g.peersMu.RLock()
	defer g.peersMu.RUnlock()
	return slices.Clone(g.peers)
}

// Broadcast records t as the snapshot to disseminate and schedules an
// immediate push. It never blocks.
func (g *Gossip) Broadcast(t topology.Topology) {
	for {
		current := g.latest.Load()
		if current != nil && current.Version() > t.Version() {
			return
		}
		if g.latest.CompareAndSwap(current, &t) {
			break
		}
	}
	select {
	case g.trigger <- struct{}{}:
	default:
	}
}

func (g *Gossip) acceptLoop() {
	defer g.wg.Done()

	for {
		conn, err := g.listener.Accept()
		if err != nil {
			select {
			case <-g.ctx.Done():
				return
			default:
				klog.ErrorS(err, "Gossip accept failed", "node", g.cfg.NodeID)
				continue
			}
		}
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			g.handleConnection(conn)
		}()
	}
}

func (g *Gossip) handleConnection(conn net.Conn) {
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(g.cfg.DialTimeout))

	data, err := readMessage(conn)
	if err != nil {
		metrics.RecordGossip("in", err)
		return
	}
	msg, err := Decode(data)
	if err == nil && msg.Type != MsgPush {
		err = fmt.Errorf("unexpected %s: %w", msg.Type, ErrInvalidMessage)
	}
	metrics.RecordGossip("in", err)
	if err != nil {
		klog.V(2).InfoS("Dropping gossip message", "node", g.cfg.NodeID, "remote", conn.RemoteAddr().String(), "err", err)
		return
	}

	g.receive(msg)

	reply := newMessage(MsgReply, g.cfg.NodeID, g.latest.Load())
	err = writeMessage(conn, reply.Encode())
	metrics.RecordGossip("out", err)
}

func (g *Gossip) receive(msg *Message) {
	if msg.Envelope.Topology == nil {
		return
	}
	klog.V(4).InfoS("Received topology", "node", g.cfg.NodeID, "from", msg.Sender, "message", msg.ID, "version", msg.Envelope.Topology.Version())
	if err := g.handler(*msg.Envelope.Topology); err != nil {
		klog.V(2).InfoS("Gossip handler failed", "node", g.cfg.NodeID, "message", msg.ID, "err", err)
	}
}

func (g *Gossip) pushLoop() {
	defer g.wg.Done()

	ticker := time.NewTicker(g.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-g.ctx.Done():
			return
		case <-ticker.C:
		case <-g.trigger:
		}
		g.pushRandomPeers()
	}
}

func (g *Gossip) pushRandomPeers() {
	peers := g.Peers()
	rand.Shuffle(len(peers), func(i, j int) {
		peers[i], peers[j] = peers[j], peers[i]
	})
	if len(peers) > g.cfg.Fanout {
		peers = peers[:g.cfg.Fanout]
	}
	for _, peer := range peers {
		if err := g.push(peer); err != nil {
			klog.V(4).InfoS("Gossip push failed", "node", g.cfg.NodeID, "peer", peer, "err", err)
		}
	}
}

func (g *Gossip) push(peer string) (err error) {
	defer func() { metrics.RecordGossip("out", err) }()

	dialer := net.Dialer{Timeout: g.cfg.DialTimeout}
	conn, err := dialer.DialContext(g.ctx, "tcp", peer)
	if err != nil {
		return err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(g.cfg.DialTimeout))

	msg := newMessage(MsgPush, g.cfg.NodeID, g.latest.Load())
	if err := writeMessage(conn, msg.Encode()); err != nil {
		return err
	}

	data, err := readMessage(conn)
	if err != nil {
		return err
	}
	reply, err := Decode(data)
	metrics.RecordGossip("in", err)
	if err != nil {
		return err
	}
	if reply.Type != MsgReply {
		return fmt.Errorf("unexpected %s: %w", reply.Type, ErrInvalidMessage)
	}
	g.receive(reply)
	return nil
}

func writeMessage(conn net.Conn, data []byte) error {
	length := uint32(len(data))
	buf := make([]byte, 4+len(data))
	buf[0] = byte(length >> 24)
	buf[1] = byte(length >> 16)
	buf[2] = byte(length >> 8)
	buf[3] = byte(length)
	copy(buf[4:], data)

	_, err := conn.Write(buf)
	return err
}

func readMessage(conn net.Conn) ([]byte, error) {
	lengthBuf := make([]byte, 4)
	if _, err := io.ReadFull(conn, lengthBuf); err != nil {
		return nil, err
	}

	length := uint32(lengthBuf[0])<<24 | uint32(lengthBuf[1])<<16 |
		uint32(lengthBuf[2])<<8 | uint32(lengthBuf[3])

	if length > MaxMessageSize {
		return nil, fmt.Errorf("message too large: %d", length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(conn, data); err != nil {
		return nil, err
	}

	return data, nil
}
