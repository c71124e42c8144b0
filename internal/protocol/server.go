// Package protocol serves the management interface over RESP.
package protocol

import (
	"context"
	"net"
	"sync"

	"github.com/tidwall/redcon"
	"k8s.io/klog/v2"

	"github.com/yevgenykuz/zeebe/internal/metrics"
)

type Server struct {
	addr     string
	handler  *Handler
	server   *redcon.Server
	listener net.Listener
	ready    chan struct{}

	mu      sync.RWMutex
	clients map[redcon.Conn]struct{}
}

func NewServer(addr string, handler *Handler) *Server {
	return &Server{
		addr:    addr,
		handler: handler,
		ready:   make(chan struct{}),
		clients: make(map[redcon.Conn]struct{}),
	}
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	klog.InfoS("Management server listening", "addr", ln.Addr().String())

	srv := redcon.NewServer(s.addr,
		s.handleCommand,
		s.handleAccept,
		s.handleClose,
	)

	s.mu.Lock()
	s.listener = ln
	s.server = srv
	s.mu.Unlock()
	close(s.ready)

	return srv.Serve(ln)
}

// Ready is closed once the server listens.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

func (s *Server) Stop() error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Close()
}

func (s *Server) Addr() string {
	s.mu.RLock()
	ln := s.listener
	s.mu.RUnlock()
	if ln != nil {
		return ln.Addr().String()
	}
	return s.addr
}

func (s *Server) handleAccept(conn redcon.Conn) bool {
	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	metrics.RecordConnection(1)
	klog.V(4).InfoS("Client connected", "remote", conn.RemoteAddr())
	return true
}

func (s *Server) handleClose(conn redcon.Conn, err error) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()

	metrics.RecordConnection(-1)
	klog.V(4).InfoS("Client disconnected", "remote", conn.RemoteAddr(), "err", err)
}

func (s *Server) handleCommand(conn redcon.Conn, cmd redcon.Command) {
	if len(cmd.Args) == 0 {
		conn.WriteError("ERR empty command")
		return
	}

	ctx := context.Background()
	s.handler.Execute(ctx, conn, cmd.Args[0], cmd.Args[1:])

	for _, p := range conn.ReadPipeline() {
		if len(p.Args) == 0 {
			continue
		}
		s.handler.Execute(ctx, conn, p.Args[0], p.Args[1:])
	}
}
