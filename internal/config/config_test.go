package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yevgenykuz/zeebe/internal/cluster/state"
	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.yaml")
	content := `
node_id: "1"
nodes: ["0", "1", "2"]
partition_count: 3
replication_factor: 3
exporters: [elastic]
store: badger
operation_timeout: 30s
gossip:
  peers: ["10.0.0.1:26502", "10.0.0.2:26502"]
  fanout: 1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "1", cfg.NodeID)
	assert.Equal(t, state.KindBadger, cfg.Store)
	assert.Equal(t, 30*time.Second, cfg.OperationTimeout)
	assert.Equal(t, time.Second, cfg.Gossip.Interval)
	assert.Equal(t, 1, cfg.Gossip.Fanout)
	assert.Len(t, cfg.Gossip.Peers, 2)

	static := cfg.StaticConfiguration()
	assert.Equal(t, topology.NodeID("1"), static.LocalNode)
	assert.Equal(t, []topology.PartitionID{1, 2, 3}, static.PartitionIDs)
	assert.Equal(t, []string{"elastic"}, static.Exporters)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nodes: {"), 0644))
	_, err = LoadFile(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"missing node id", func(c *Config) { c.NodeID = "" }, ErrMissingNodeID},
		{"not a member", func(c *Config) { c.NodeID = "7" }, ErrLocalNodeNotMember},
		{"no partitions", func(c *Config) { c.PartitionCount = 0 }, ErrInvalidPartitionCount},
		{"too many partitions", func(c *Config) { c.PartitionCount = int(topology.MaxPartitions) + 1 }, ErrInvalidPartitionCount},
		{"replication above nodes", func(c *Config) { c.ReplicationFactor = 2 }, ErrInvalidReplication},
		{"unknown store", func(c *Config) { c.Store = "tape" }, ErrInvalidStore},
		{"negative timeout", func(c *Config) { c.OperationTimeout = -time.Second }, ErrInvalidTimeout},
		{"no fanout", func(c *Config) { c.Gossip.Fanout = 0 }, ErrInvalidGossip},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}
