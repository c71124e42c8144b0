package state

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/yevgenykuz/zeebe/internal/cluster/codec"
	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
)

const stateFileName = "topology.bin"

// FileStore keeps the encoded topology in a single file. Writes go to a
// temporary file first and are renamed into place after an fsync.
type FileStore struct {
	dataDir string
}

func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dataDir: dataDir}, nil
}

func (s *FileStore) Load() (topology.Topology, bool, error) {
	data, err := os.ReadFile(s.FilePath())
	if os.IsNotExist(err) {
		return topology.Topology{}, false, nil
	}
	if err != nil {
		return topology.Topology{}, false, fmt.Errorf("read state file: %w", err)
	}

	t, err := codec.DecodeTopology(data)
	if err != nil {
		return topology.Topology{}, false, fmt.Errorf("decode state file: %w", err)
	}
	return t, true, nil
}

func (s *FileStore) Save(t topology.Topology) error {
	path := s.FilePath()
	tempPath := path + ".tmp"

	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(codec.EncodeTopology(t)); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename state file: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) FilePath() string {
	return filepath.Join(s.dataDir, stateFileName)
}
