// Package client talks to the CLUSTERCONFIG management interface of a node.
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"k8s.io/klog/v2"

	"github.com/yevgenykuz/zeebe/internal/cluster/api"
	"github.com/yevgenykuz/zeebe/internal/cluster/codec"
	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
	"github.com/yevgenykuz/zeebe/internal/protocol/commands"
)

const command = "CLUSTERCONFIG"

// Client wraps a redis client with the management commands.
type Client struct {
	client *redis.Client
}

// NewClient connects to the management address of a node.
func NewClient(addr string) (*Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	klog.V(2).InfoS("Connected to node", "addr", addr)
	return &Client{client: client}, nil
}

// Topology returns the node's current topology.
func (c *Client) Topology(ctx context.Context) (topology.Topology, error) {
	b, err := c.do(ctx, "GET")
	if err != nil {
		return topology.Topology{}, err
	}
	return codec.DecodeTopology(b)
}

// Info returns the CLUSTERCONFIG INFO fields.
func (c *Client) Info(ctx context.Context) (map[string]string, error) {
	b, err := c.do(ctx, "INFO")
	if err != nil {
		return nil, err
	}
	info := make(map[string]string)
	for _, line := range strings.Split(string(b), "\r\n") {
		if k, v, ok := strings.Cut(line, ":"); ok {
			info[k] = v
		}
	}
	return info, nil
}

// Submit sends a management request and returns the accepted or simulated
// change.
func (c *Client) Submit(ctx context.Context, req api.Request) (api.ChangeResponse, error) {
	var subcmd string
	switch req.(type) {
	case api.AddNodesRequest:
		subcmd = "ADDNODES"
	case api.RemoveNodesRequest:
		subcmd = "REMOVENODES"
	case api.ReassignPartitionsRequest:
		subcmd = "REASSIGN"
	case api.JoinPartitionRequest:
		subcmd = "JOIN"
	case api.LeavePartitionRequest:
		subcmd = "LEAVE"
	default:
		return api.ChangeResponse{}, fmt.Errorf("unsupported request %T", req)
	}

	payload, err := codec.EncodeRequest(req)
	if err != nil {
		return api.ChangeResponse{}, err
	}
	b, err := c.do(ctx, subcmd, payload)
	if err != nil {
		return api.ChangeResponse{}, err
	}
	return codec.DecodeChangeResponse(b)
}

func (c *Client) AddNodes(ctx context.Context, ids []topology.NodeID, dryRun bool) (api.ChangeResponse, error) {
	return c.Submit(ctx, api.AddNodesRequest{NodeIDs: ids, DryRun: dryRun})
}

func (c *Client) RemoveNodes(ctx context.Context, ids []topology.NodeID, dryRun bool) (api.ChangeResponse, error) {
	return c.Submit(ctx, api.RemoveNodesRequest{NodeIDs: ids, DryRun: dryRun})
}

func (c *Client) Reassign(ctx context.Context, ids []topology.NodeID, dryRun bool) (api.ChangeResponse, error) {
	return c.Submit(ctx, api.ReassignPartitionsRequest{NodeIDs: ids, DryRun: dryRun})
}

func (c *Client) JoinPartition(ctx context.Context, node topology.NodeID, partition topology.PartitionID, priority int32, dryRun bool) (api.ChangeResponse, error) {
	return c.Submit(ctx, api.JoinPartitionRequest{NodeID: node, PartitionID: partition, Priority: priority, DryRun: dryRun})
}

func (c *Client) LeavePartition(ctx context.Context, node topology.NodeID, partition topology.PartitionID, dryRun bool) (api.ChangeResponse, error) {
	return c.Submit(ctx, api.LeavePartitionRequest{NodeID: node, PartitionID: partition, DryRun: dryRun})
}

// Retry re-runs a halted operation on the node.
func (c *Client) Retry(ctx context.Context) error {
	_, err := c.do(ctx, "RETRY")
	return err
}

// Cancel drops the pending change plan and returns the resulting topology.
func (c *Client) Cancel(ctx context.Context) (topology.Topology, error) {
	b, err := c.do(ctx, "CANCEL")
	if err != nil {
		return topology.Topology{}, err
	}
	return codec.DecodeTopology(b)
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) do(ctx context.Context, args ...interface{}) ([]byte, error) {
	reply, err := c.client.Do(ctx, append([]interface{}{command}, args...)...).Text()
	if err != nil {
		var replyErr redis.Error
		if errors.As(err, &replyErr) {
			return nil, commands.ParseErrorReply(replyErr.Error())
		}
		return nil, fmt.Errorf("%s %v: %w", command, args[0], err)
	}
	return []byte(reply), nil
}
