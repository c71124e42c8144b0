package state

import (
	"fmt"

	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
)

// Store persists the latest topology of the local node.
type Store interface {
	// Save replaces the persisted topology.
	Save(t topology.Topology) error
	// Load returns the persisted topology. ok is false when nothing was
	// persisted yet.
	Load() (t topology.Topology, ok bool, err error)
	Close() error
}

// Kind selects a Store implementation.
type Kind string

const (
	KindFile   Kind = "file"
	KindBadger Kind = "badger"
)

// Open creates the store of the given kind under dataDir.
func Open(kind Kind, dataDir string) (Store, error) {
	switch kind {
	case KindFile, "":
		return NewFileStore(dataDir)
	case KindBadger:
		return NewBadgerStore(dataDir)
	default:
		return nil, fmt.Errorf("unknown store kind %q", kind)
	}
}
