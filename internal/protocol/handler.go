package protocol

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/tidwall/redcon"

	"github.com/yevgenykuz/zeebe/internal/metrics"
	"github.com/yevgenykuz/zeebe/internal/protocol/commands"
	"github.com/yevgenykuz/zeebe/pkg/protocolbuf"
)

// Version is reported by INFO.
var Version = "dev"

type Handler struct {
	cmdMap        cmdMap
	clusterConfig *commands.ClusterConfigHandler
	started       time.Time
}

func NewHandler(c commands.Cluster) *Handler {
	h := &Handler{started: time.Now()}
	if c != nil {
		h.clusterConfig = commands.NewClusterConfigHandler(c)
	}
	h.registerCommands()
	return h
}

func (h *Handler) registerCommands() {
	h.cmdMap.register("PING", h.cmdPing)
	h.cmdMap.register("ECHO", h.cmdEcho)
	h.cmdMap.register("QUIT", h.cmdQuit)
	h.cmdMap.register("COMMAND", h.cmdCommand)
	h.cmdMap.register("CLIENT", h.cmdClient)
	h.cmdMap.register("INFO", h.cmdInfo)
	h.cmdMap.register("CLUSTERCONFIG", h.cmdClusterConfig)
}

// Execute runs one command and records its outcome.
func (h *Handler) Execute(ctx context.Context, conn redcon.Conn, cmdBytes []byte, args [][]byte) {
	ToUpperInPlace(cmdBytes)

	fn := h.cmdMap.Lookup(cmdBytes)
	if fn == nil {
		conn.WriteError("ERR unknown command '" + string(cmdBytes) + "'")
		return
	}

	start := time.Now()
	err := fn(ctx, conn, args)
	metrics.RecordCommand(string(cmdBytes), time.Since(start), err == nil)
}

func (h *Handler) cmdPing(_ context.Context, conn redcon.Conn, args [][]byte) error {
	if len(args) == 0 {
		conn.WriteString("PONG")
	} else {
		conn.WriteBulk(args[0])
	}
	return nil
}

func (h *Handler) cmdEcho(_ context.Context, conn redcon.Conn, args [][]byte) error {
	if len(args) != 1 {
		return wrongArgs(conn, "echo")
	}
	conn.WriteBulk(args[0])
	return nil
}

func (h *Handler) cmdQuit(_ context.Context, conn redcon.Conn, _ [][]byte) error {
	conn.WriteString("OK")
	return conn.Close()
}

func (h *Handler) cmdCommand(_ context.Context, conn redcon.Conn, _ [][]byte) error {
	conn.WriteArray(0)
	return nil
}

func (h *Handler) cmdClient(_ context.Context, conn redcon.Conn, args [][]byte) error {
	if len(args) == 0 {
		return wrongArgs(conn, "client")
	}
	switch strings.ToUpper(string(args[0])) {
	case "GETNAME":
		conn.WriteNull()
	case "LIST":
		conn.WriteBulkString("")
	default:
		conn.WriteString("OK")
	}
	return nil
}

func (h *Handler) cmdInfo(_ context.Context, conn redcon.Conn, _ [][]byte) error {
	buf := protocolbuf.GetBuffer()
	defer protocolbuf.PutBuffer(buf)

	buf.WriteString("# Server\r\n")
	fmt.Fprintf(buf, "zeebe_version:%s\r\n", Version)
	fmt.Fprintf(buf, "go_version:%s\r\n", runtime.Version())
	fmt.Fprintf(buf, "uptime_in_seconds:%d\r\n", int64(time.Since(h.started).Seconds()))
	buf.WriteString("\r\n# Cluster\r\n")
	if h.clusterConfig != nil {
		buf.WriteString("cluster_enabled:1\r\n")
	} else {
		buf.WriteString("cluster_enabled:0\r\n")
	}

	conn.WriteBulk(buf.Bytes())
	return nil
}

func (h *Handler) cmdClusterConfig(ctx context.Context, conn redcon.Conn, args [][]byte) error {
	if h.clusterConfig == nil {
		conn.WriteError("ERR This instance has cluster support disabled")
		return fmt.Errorf("cluster support disabled")
	}
	return h.clusterConfig.HandleClusterConfig(ctx, conn, args)
}

func wrongArgs(conn redcon.Conn, cmd string) error {
	err := fmt.Errorf("wrong number of arguments for '%s' command", cmd)
	conn.WriteError("ERR " + err.Error())
	return err
}
