package main

import (
	goflag "flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var rootCmd = &cobra.Command{
	Use:   "zeebe-cluster",
	Short: "Dynamic cluster configuration node",
	Long: `Runs and manages nodes that agree on the cluster topology: which nodes are
members and which partitions each node replicates. Topology changes are
planned as a sequence of operations and executed one at a time by the node
they target.`,
	SilenceUsage: true,
}

func init() {
	fs := goflag.NewFlagSet("klog", goflag.ExitOnError)
	klog.InitFlags(fs)
	rootCmd.PersistentFlags().AddGoFlagSet(fs)
}

func main() {
	defer klog.Flush()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
