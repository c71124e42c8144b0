package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/yevgenykuz/zeebe/internal/cluster/api"
	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
	"github.com/yevgenykuz/zeebe/pkg/client"
)

var (
	inspectAddr    string
	inspectTimeout time.Duration
	inspectInfo    bool

	changeDryRun   bool
	changePriority int32
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print the topology of a running node",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			if inspectInfo {
				info, err := c.Info(ctx)
				if err != nil {
					return err
				}
				keys := maps.Keys(info)
				slices.Sort(keys)
				for _, k := range keys {
					fmt.Fprintf(cmd.OutOrStdout(), "%s:%s\n", k, info[k])
				}
				return nil
			}
			topo, err := c.Topology(ctx)
			if err != nil {
				return err
			}
			return topo.Describe(cmd.OutOrStdout())
		})
	},
}

var changeCmd = &cobra.Command{
	Use:   "change",
	Short: "Request a topology change from a running node",
}

var changeAddCmd = &cobra.Command{
	Use:   "add NODE...",
	Short: "Add nodes without assigning partitions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return submit(cmd, api.AddNodesRequest{NodeIDs: nodeIDs(args), DryRun: changeDryRun})
	},
}

var changeRemoveCmd = &cobra.Command{
	Use:   "remove NODE...",
	Short: "Move partitions off the given nodes and remove them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return submit(cmd, api.RemoveNodesRequest{NodeIDs: nodeIDs(args), DryRun: changeDryRun})
	},
}

var changeReassignCmd = &cobra.Command{
	Use:   "reassign NODE...",
	Short: "Redistribute all partitions over exactly the given nodes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return submit(cmd, api.ReassignPartitionsRequest{NodeIDs: nodeIDs(args), DryRun: changeDryRun})
	},
}

var changeJoinCmd = &cobra.Command{
	Use:   "join NODE PARTITION",
	Short: "Add a replica of a partition to a node",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := parsePartition(args[1])
		if err != nil {
			return err
		}
		return submit(cmd, api.JoinPartitionRequest{
			NodeID:      topology.NodeID(args[0]),
			PartitionID: pid,
			Priority:    changePriority,
			DryRun:      changeDryRun,
		})
	},
}

var changeLeaveCmd = &cobra.Command{
	Use:   "leave NODE PARTITION",
	Short: "Remove a replica of a partition from a node",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := parsePartition(args[1])
		if err != nil {
			return err
		}
		return submit(cmd, api.LeavePartitionRequest{NodeID: topology.NodeID(args[0]), PartitionID: pid, DryRun: changeDryRun})
	},
}

var changeRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Retry the halted operation of the node",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			if err := c.Retry(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		})
	},
}

var changeCancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Drop the pending operations of the change plan",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			topo, err := c.Cancel(ctx)
			if err != nil {
				return err
			}
			return topo.Describe(cmd.OutOrStdout())
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{inspectCmd, changeCmd} {
		cmd.PersistentFlags().StringVar(&inspectAddr, "addr", "127.0.0.1:26500", "management address of the node")
		cmd.PersistentFlags().DurationVar(&inspectTimeout, "timeout", 10*time.Second, "request timeout")
		rootCmd.AddCommand(cmd)
	}
	inspectCmd.Flags().BoolVar(&inspectInfo, "info", false, "print CLUSTERCONFIG INFO instead of the topology")

	changeCmd.PersistentFlags().BoolVar(&changeDryRun, "dry-run", false, "only compute the resulting plan")
	changeJoinCmd.Flags().Int32Var(&changePriority, "priority", 1, "election priority of the new replica")
	changeCmd.AddCommand(changeAddCmd, changeRemoveCmd, changeReassignCmd, changeJoinCmd, changeLeaveCmd,
		changeRetryCmd, changeCancelCmd)
}

func withClient(cmd *cobra.Command, fn func(context.Context, *client.Client) error) error {
	c, err := client.NewClient(inspectAddr)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), inspectTimeout)
	defer cancel()
	return fn(ctx, c)
}

func submit(cmd *cobra.Command, req api.Request) error {
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		resp, err := c.Submit(ctx, req)
		if err != nil {
			return err
		}
		return printChange(cmd.OutOrStdout(), resp, req.IsDryRun())
	})
}

func printChange(w io.Writer, resp api.ChangeResponse, dryRun bool) error {
	if dryRun {
		fmt.Fprintf(w, "dry run at version %d\n", resp.Version)
	} else {
		fmt.Fprintf(w, "change plan started at version %d\n", resp.Version)
	}
	if len(resp.Operations) == 0 {
		_, err := fmt.Fprintln(w, "no operations required")
		return err
	}
	for i, op := range resp.Operations {
		fmt.Fprintf(w, "  %2d  %s\n", i+1, op)
	}
	changed := resp.ChangedNodes.IDs()
	_, err := fmt.Fprintf(w, "changed nodes: %v\n", changed)
	return err
}

func nodeIDs(args []string) []topology.NodeID {
	return lo.Uniq(lo.Map(args, func(s string, _ int) topology.NodeID { return topology.NodeID(s) }))
}

func parsePartition(s string) (topology.PartitionID, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid partition id %q", s)
	}
	return topology.PartitionID(n), nil
}
