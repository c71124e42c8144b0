package state

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/yevgenykuz/zeebe/internal/cluster/codec"
	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
)

var topologyKey = []byte("cluster/topology")

// BadgerStore keeps the encoded topology under a single key of a badger
// database.
type BadgerStore struct {
	db *badger.DB
}

func NewBadgerStore(dataDir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dataDir).WithLogger(nil)
	// A single small value: keep the caches tiny and make every write durable.
	opts.BlockCacheSize = 1 << 20
	opts.IndexCacheSize = 1 << 20
	opts.SyncWrites = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Load() (topology.Topology, bool, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(topologyKey)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return topology.Topology{}, false, nil
	}
	if err != nil {
		return topology.Topology{}, false, fmt.Errorf("read topology: %w", err)
	}

	t, err := codec.DecodeTopology(data)
	if err != nil {
		return topology.Topology{}, false, fmt.Errorf("decode topology: %w", err)
	}
	return t, true, nil
}

func (s *BadgerStore) Save(t topology.Topology) error {
	data := codec.EncodeTopology(t)
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(topologyKey, data)
	}); err != nil {
		return fmt.Errorf("write topology: %w", err)
	}
	return nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
