package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/yevgenykuz/zeebe/internal/cluster/state"
)

var (
	bootstrapFlags *nodeFlags
	bootstrapForce bool
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Write the initial topology to the data directory",
	Long: `Generate the initial topology from the static configuration and persist it
without starting the node. An existing topology is kept unless --force is set.`,
	RunE: runBootstrap,
}

func init() {
	rootCmd.AddCommand(bootstrapCmd)
	bootstrapFlags = addNodeFlags(bootstrapCmd.Flags())
	bootstrapCmd.Flags().BoolVar(&bootstrapForce, "force", false, "overwrite a persisted topology")
}

func runBootstrap(cmd *cobra.Command, _ []string) error {
	cfg, err := bootstrapFlags.load(cmd)
	if err != nil {
		return err
	}

	store, err := state.Open(cfg.Store, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store, err)
	}
	defer store.Close()

	existing, ok, err := store.Load()
	if err != nil {
		return fmt.Errorf("load persisted topology: %w", err)
	}
	if ok && !bootstrapForce {
		return fmt.Errorf("topology version %d already persisted in %s, use --force to overwrite", existing.Version(), cfg.DataDir)
	}

	topo, err := cfg.StaticConfiguration().GenerateTopology()
	if err != nil {
		return err
	}
	if err := store.Save(topo); err != nil {
		return fmt.Errorf("save topology: %w", err)
	}

	klog.InfoS("Persisted initial topology", "dataDir", cfg.DataDir, "store", cfg.Store, "version", topo.Version())
	return topo.Describe(cmd.OutOrStdout())
}
