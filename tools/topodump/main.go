// Command topodump prints a topology persisted by a node, or decodes a raw
// encoded topology file.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/yevgenykuz/zeebe/internal/cluster/codec"
	"github.com/yevgenykuz/zeebe/internal/cluster/state"
	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
)

func main() {
	dataDir := pflag.String("data-dir", "./data", "data directory of the node")
	store := pflag.String("store", string(state.KindFile), "store kind: file or badger")
	file := pflag.String("file", "", "decode this encoded topology file instead of a data directory")
	pflag.Parse()

	topo, err := load(*file, state.Kind(*store), *dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := topo.Describe(os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func load(file string, kind state.Kind, dataDir string) (topology.Topology, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return topology.Topology{}, err
		}
		return codec.DecodeTopology(data)
	}

	s, err := state.Open(kind, dataDir)
	if err != nil {
		return topology.Topology{}, err
	}
	defer s.Close()

	topo, ok, err := s.Load()
	if err != nil {
		return topology.Topology{}, err
	}
	if !ok {
		return topology.Topology{}, fmt.Errorf("no topology persisted in %s", dataDir)
	}
	return topo, nil
}
