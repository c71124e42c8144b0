package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/redcon"

	"github.com/yevgenykuz/zeebe/internal/cluster"
	"github.com/yevgenykuz/zeebe/internal/cluster/codec"
	"github.com/yevgenykuz/zeebe/internal/cluster/management"
	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
	zerrors "github.com/yevgenykuz/zeebe/pkg/errors"
	"github.com/yevgenykuz/zeebe/pkg/protocolbuf"
)

// Cluster is the part of cluster.Cluster served over CLUSTERCONFIG.
type Cluster interface {
	management.Cluster
	LocalNode() topology.NodeID
	State() cluster.ClusterState
	LastError() error
	Retry(ctx context.Context) error
	CancelChangePlan(ctx context.Context) (topology.Topology, error)
}

var requestTypes = map[string]codec.MessageType{
	"ADDNODES":    codec.TypeAddNodesRequest,
	"REMOVENODES": codec.TypeRemoveNodesRequest,
	"REASSIGN":    codec.TypeReassignPartitionsRequest,
	"JOIN":        codec.TypeJoinPartitionRequest,
	"LEAVE":       codec.TypeLeavePartitionRequest,
}

type ClusterConfigHandler struct {
	cluster Cluster
	service *management.Service
}

func NewClusterConfigHandler(c Cluster) *ClusterConfigHandler {
	return &ClusterConfigHandler{cluster: c, service: management.NewService(c)}
}

// HandleClusterConfig serves CLUSTERCONFIG <subcommand> [payload]. Payloads
// and replies other than INFO are codec encoded.
func (h *ClusterConfigHandler) HandleClusterConfig(ctx context.Context, conn redcon.Conn, args [][]byte) error {
	if len(args) == 0 {
		return writeError(conn, fmt.Errorf("wrong number of arguments for 'clusterconfig' command"))
	}

	subcmd := strings.ToUpper(string(args[0]))
	switch subcmd {
	case "GET":
		conn.WriteBulk(codec.EncodeTopology(h.cluster.Topology()))
		return nil
	case "INFO":
		h.info(conn)
		return nil
	case "RETRY":
		if err := h.cluster.Retry(ctx); err != nil {
			return writeError(conn, err)
		}
		conn.WriteString("OK")
		return nil
	case "CANCEL":
		t, err := h.cluster.CancelChangePlan(ctx)
		if err != nil {
			return writeError(conn, err)
		}
		conn.WriteBulk(codec.EncodeTopology(t))
		return nil
	}

	want, ok := requestTypes[subcmd]
	if !ok {
		return writeError(conn, fmt.Errorf("unknown subcommand '%s'", subcmd))
	}
	if len(args) != 2 {
		return writeError(conn, fmt.Errorf("wrong number of arguments for 'clusterconfig %s' command", strings.ToLower(subcmd)))
	}
	return h.change(ctx, conn, want, args[1])
}

func (h *ClusterConfigHandler) change(ctx context.Context, conn redcon.Conn, want codec.MessageType, payload []byte) error {
	got, err := codec.PeekType(payload)
	if err != nil {
		return writeError(conn, err)
	}
	if got != want {
		return writeError(conn, fmt.Errorf("expected %s, got %s: %w", want, got, zerrors.ErrMalformed))
	}
	req, err := codec.DecodeRequest(payload)
	if err != nil {
		return writeError(conn, err)
	}

	resp, err := h.service.Handle(ctx, req)
	if err != nil {
		return writeError(conn, err)
	}
	conn.WriteBulk(codec.EncodeChangeResponse(resp))
	return nil
}

func (h *ClusterConfigHandler) info(conn redcon.Conn) {
	t := h.cluster.Topology()

	buf := protocolbuf.GetBuffer()
	defer protocolbuf.PutBuffer(buf)

	fmt.Fprintf(buf, "node_id:%s\r\n", h.cluster.LocalNode())
	fmt.Fprintf(buf, "cluster_state:%s\r\n", h.cluster.State())
	fmt.Fprintf(buf, "topology_version:%d\r\n", t.Version())
	fmt.Fprintf(buf, "topology_initialized:%t\r\n", t.IsInitialized())
	fmt.Fprintf(buf, "cluster_nodes:%d\r\n", len(t.NodeIDs()))
	fmt.Fprintf(buf, "cluster_partitions:%d\r\n", len(t.PartitionIDs()))

	pending, completed := 0, 0
	if plan, ok := t.ChangePlan(); ok {
		pending, completed = len(plan.Pending()), len(plan.Completed())
	}
	fmt.Fprintf(buf, "pending_operations:%d\r\n", pending)
	fmt.Fprintf(buf, "completed_operations:%d\r\n", completed)
	if op, ok := t.PendingOperation(); ok {
		fmt.Fprintf(buf, "next_operation:%s\r\n", op)
	}
	if err := h.cluster.LastError(); err != nil {
		fmt.Fprintf(buf, "last_error:%s\r\n", err)
	}

	for _, id := range t.NodeIDs() {
		node, _ := t.Node(id)
		fmt.Fprintf(buf, "node_%s:state=%s,partitions=%d\r\n", id, node.Lifecycle(), len(node.PartitionIDs()))
	}

	conn.WriteBulk(buf.Bytes())
}
