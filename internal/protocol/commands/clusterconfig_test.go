package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/redcon"

	"github.com/yevgenykuz/zeebe/internal/cluster"
	"github.com/yevgenykuz/zeebe/internal/cluster/api"
	"github.com/yevgenykuz/zeebe/internal/cluster/codec"
	"github.com/yevgenykuz/zeebe/internal/cluster/distribution"
	"github.com/yevgenykuz/zeebe/internal/cluster/state"
	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
	zerrors "github.com/yevgenykuz/zeebe/pkg/errors"
)

type mockConn struct {
	response    string
	isBulk      bool
	bulkContent []byte
}

func (m *mockConn) WriteString(s string) {
	m.response = s
}

func (m *mockConn) WriteError(s string) {
	m.response = "-" + s
}

func (m *mockConn) WriteBulk(b []byte) {
	m.isBulk = true
	m.bulkContent = append([]byte(nil), b...)
}

func (m *mockConn) WriteBulkString(s string) {
	m.isBulk = true
	m.bulkContent = []byte(s)
}

func (m *mockConn) WriteInt(n int)                 {}
func (m *mockConn) WriteInt64(n int64)             {}
func (m *mockConn) WriteUint64(n uint64)           {}
func (m *mockConn) WriteArray(n int)               {}
func (m *mockConn) WriteNull()                     {}
func (m *mockConn) WriteRaw(b []byte)              {}
func (m *mockConn) WriteAny(v interface{})         {}
func (m *mockConn) Context() interface{}           { return nil }
func (m *mockConn) SetContext(v interface{})       {}
func (m *mockConn) SetReadBuffer(n int)            {}
func (m *mockConn) Detach() redcon.DetachedConn    { return nil }
func (m *mockConn) ReadPipeline() []redcon.Command { return nil }
func (m *mockConn) PeekPipeline() []redcon.Command { return nil }
func (m *mockConn) NetConn() net.Conn              { return nil }
func (m *mockConn) RemoteAddr() string             { return "127.0.0.1:12345" }
func (m *mockConn) Close() error                   { return nil }

func newTestHandler(t *testing.T) (*ClusterConfigHandler, *cluster.Cluster) {
	t.Helper()
	store, err := state.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	manager := state.NewManager(store, 10*time.Millisecond)
	t.Cleanup(func() { manager.Close() })

	c := cluster.NewCluster(cluster.Config{
		LocalNode: "0",
		Static: distribution.StaticConfiguration{
			Nodes:             []topology.NodeID{"0", "1", "2"},
			LocalNode:         "0",
			PartitionIDs:      distribution.PartitionIDsUpTo(2),
			ReplicationFactor: 3,
		},
	}, manager, nil)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("failed to start cluster: %v", err)
	}
	t.Cleanup(func() { c.Stop() })
	return NewClusterConfigHandler(c), c
}

func run(h *ClusterConfigHandler, args ...[]byte) (*mockConn, error) {
	conn := &mockConn{}
	err := h.HandleClusterConfig(context.Background(), conn, args)
	return conn, err
}

func encode(t *testing.T, r api.Request) []byte {
	t.Helper()
	b, err := codec.EncodeRequest(r)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return b
}

func TestClusterConfigGet(t *testing.T) {
	h, c := newTestHandler(t)

	conn, err := run(h, []byte("get"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !conn.isBulk {
		t.Fatalf("expected bulk reply, got %q", conn.response)
	}
	topo, err := codec.DecodeTopology(conn.bulkContent)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !topo.Equal(c.Topology()) {
		t.Errorf("expected %v, got %v", c.Topology(), topo)
	}
}

func TestClusterConfigInfo(t *testing.T) {
	h, _ := newTestHandler(t)

	conn, _ := run(h, []byte("INFO"))
	info := string(conn.bulkContent)
	for _, want := range []string{
		"node_id:0\r\n",
		"cluster_state:ok\r\n",
		"topology_version:0\r\n",
		"cluster_nodes:3\r\n",
		"cluster_partitions:2\r\n",
		"pending_operations:0\r\n",
		"node_1:state=ACTIVE,partitions=2\r\n",
	} {
		if !strings.Contains(info, want) {
			t.Errorf("expected INFO to contain %q, got:\n%s", want, info)
		}
	}
}

func TestClusterConfigAddNodesDryRun(t *testing.T) {
	h, c := newTestHandler(t)

	conn, err := run(h, []byte("ADDNODES"), encode(t, api.AddNodesRequest{NodeIDs: []topology.NodeID{"3"}, DryRun: true}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, err := codec.DecodeChangeResponse(conn.bulkContent)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Operations) != 1 || resp.Operations[0] != (topology.NodeJoin{NodeID: "3"}) {
		t.Errorf("unexpected operations %v", resp.Operations)
	}
	if _, ok := resp.ChangedNodes["3"]; !ok {
		t.Errorf("expected node 3 in changed nodes, got %v", resp.ChangedNodes.IDs())
	}
	if c.Topology().HasPendingChanges() {
		t.Error("dry run must not start a change plan")
	}
}

func TestClusterConfigSubmitAndCancel(t *testing.T) {
	h, c := newTestHandler(t)

	// Node 3 never runs, so the plan stays pending.
	if _, err := run(h, []byte("ADDNODES"), encode(t, api.AddNodesRequest{NodeIDs: []topology.NodeID{"3"}})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.Topology().HasPendingChanges() {
		t.Fatal("expected a pending change plan")
	}

	conn, _ := run(h, []byte("ADDNODES"), encode(t, api.AddNodesRequest{NodeIDs: []topology.NodeID{"4"}}))
	if !strings.HasPrefix(conn.response, "-VALIDATION ") {
		t.Errorf("expected VALIDATION error, got %q", conn.response)
	}

	conn, err := run(h, []byte("CANCEL"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	topo, err := codec.DecodeTopology(conn.bulkContent)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if topo.HasPendingChanges() {
		t.Error("expected no pending changes after cancel")
	}
}

func TestClusterConfigErrors(t *testing.T) {
	h, _ := newTestHandler(t)

	tests := []struct {
		name   string
		args   [][]byte
		prefix string
	}{
		{"no args", nil, "-ERR wrong number of arguments"},
		{"unknown", [][]byte{[]byte("FOO")}, "-ERR unknown subcommand 'FOO'"},
		{"missing payload", [][]byte{[]byte("JOIN")}, "-ERR wrong number of arguments"},
		{"garbage", [][]byte{[]byte("JOIN"), []byte("xx")}, "-MALFORMED "},
		{"wrong type", [][]byte{[]byte("JOIN"), encode(t, api.LeavePartitionRequest{NodeID: "0", PartitionID: 1})}, "-MALFORMED "},
		{"too few nodes", [][]byte{[]byte("REASSIGN"), encode(t, api.ReassignPartitionsRequest{NodeIDs: []topology.NodeID{"0"}})}, "-VALIDATION "},
		{"retry without plan", [][]byte{[]byte("RETRY")}, "-VALIDATION "},
		{"cancel without plan", [][]byte{[]byte("CANCEL")}, "-VALIDATION "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, err := run(h, tt.args...)
			if err == nil {
				t.Error("expected error")
			}
			if !strings.HasPrefix(conn.response, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, conn.response)
			}
		})
	}
}

func TestErrorReplyRoundTrip(t *testing.T) {
	tests := []struct {
		err    error
		prefix string
		class  error
	}{
		{fmt.Errorf("bad: %w", zerrors.ErrValidation), PrefixValidation, zerrors.ErrValidation},
		{zerrors.ErrChangePlanInProgress, PrefixValidation, zerrors.ErrValidation},
		{fmt.Errorf("slow: %w", zerrors.ErrOperationTimeout), PrefixExecution, zerrors.ErrExecution},
		{fmt.Errorf("short\nread: %w", zerrors.ErrMalformed), PrefixMalformed, zerrors.ErrMalformed},
		{zerrors.ErrClusterFailed, PrefixFailed, zerrors.ErrClusterFailed},
		{&topology.IllegalTransitionError{Entity: "node", From: "LEFT", To: "ACTIVE"}, PrefixIllegal, zerrors.ErrIllegalTransition},
		{&topology.VersionConflictError{Version: 3}, PrefixConflict, zerrors.ErrVersionConflict},
		{zerrors.ErrNotStarted, PrefixNotStarted, zerrors.ErrNotStarted},
		{errors.New("boom"), PrefixErr, nil},
	}
	for _, tt := range tests {
		reply := ErrorReply(tt.err)
		if !strings.HasPrefix(reply, tt.prefix+" ") || strings.ContainsAny(reply, "\r\n") {
			t.Errorf("unexpected reply %q for %v", reply, tt.err)
		}
		parsed := ParseErrorReply(reply)
		if tt.class != nil && !errors.Is(parsed, tt.class) {
			t.Errorf("expected %q to map to %v", reply, tt.class)
		}
		if tt.class == nil && parsed.Error() != reply {
			t.Errorf("expected unclassified reply %q to be kept, got %q", reply, parsed)
		}
	}
}
