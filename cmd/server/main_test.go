package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yevgenykuz/zeebe/internal/cluster/api"
	"github.com/yevgenykuz/zeebe/internal/cluster/state"
	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
	"github.com/yevgenykuz/zeebe/internal/config"
)

func parseNodeFlags(t *testing.T, args ...string) (config.Config, error) {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	f := addNodeFlags(cmd.Flags())
	require.NoError(t, cmd.ParseFlags(args))
	return f.load(cmd)
}

func TestNodeFlags_Defaults(t *testing.T) {
	cfg, err := parseNodeFlags(t)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestNodeFlags_OverrideConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
node_id: "1"
nodes: ["0", "1", "2"]
partition_count: 3
replication_factor: 2
operation_timeout: 1m
`), 0644))

	cfg, err := parseNodeFlags(t, "--config", path, "--replication-factor", "3", "--store", "badger")
	require.NoError(t, err)
	assert.Equal(t, "1", cfg.NodeID)
	assert.Equal(t, 3, cfg.PartitionCount)
	assert.Equal(t, 3, cfg.ReplicationFactor)
	assert.Equal(t, state.KindBadger, cfg.Store)
	assert.Equal(t, time.Minute, cfg.OperationTimeout)
}

func TestNodeFlags_Invalid(t *testing.T) {
	_, err := parseNodeFlags(t, "--node-id", "5", "--nodes", "0,1")
	assert.ErrorIs(t, err, config.ErrLocalNodeNotMember)
}

func TestBootstrapCommand(t *testing.T) {
	dir := t.TempDir()
	args := []string{"bootstrap", "--node-id", "0", "--nodes", "0,1", "--partitions", "2",
		"--replication-factor", "2", "--data-dir", dir}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "version: 0\n")

	store, err := state.NewFileStore(dir)
	require.NoError(t, err)
	topo, ok, err := store.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []topology.NodeID{"0", "1"}, topo.NodeIDs())
	assert.Equal(t, []topology.PartitionID{1, 2}, topo.PartitionIDs())

	rootCmd.SetArgs(args)
	assert.Error(t, rootCmd.Execute())
}

func TestPrintChange(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printChange(&out, api.ChangeResponse{
		Version:      4,
		Operations:   []topology.ChangeOperation{topology.NodeJoin{NodeID: "3"}},
		ChangedNodes: topology.Nodes{"3": topology.Uninitialized()},
	}, true))
	assert.Equal(t, "dry run at version 4\n   1  NodeJoin{node=3}\nchanged nodes: [3]\n", out.String())

	out.Reset()
	require.NoError(t, printChange(&out, api.ChangeResponse{Version: 2}, false))
	assert.Equal(t, "change plan started at version 2\nno operations required\n", out.String())
}

func TestParsePartition(t *testing.T) {
	pid, err := parsePartition("7")
	require.NoError(t, err)
	assert.Equal(t, topology.PartitionID(7), pid)

	for _, s := range []string{"0", "-1", "x", "99999999999"} {
		_, err := parsePartition(s)
		assert.Error(t, err, s)
	}
}
