package protocol

import (
	"context"

	"github.com/tidwall/redcon"
)

// CommandHandler serves one command. A returned error has already been
// written to conn and is only used for metrics.
type CommandHandler func(ctx context.Context, conn redcon.Conn, args [][]byte) error

type cmdEntry struct {
	name    []byte
	handler CommandHandler
}

// cmdMap is an open-addressing table keyed by upper case command names.
type cmdMap struct {
	buckets [16]cmdEntry
}

func (cm *cmdMap) register(name string, handler CommandHandler) {
	key := []byte(name)
	idx := HashBytes(key) & 15
	for i := 0; i < len(cm.buckets); i++ {
		pos := (idx + uint32(i)) & 15
		if cm.buckets[pos].name == nil {
			cm.buckets[pos] = cmdEntry{name: key, handler: handler}
			return
		}
	}
	panic("cmdMap overflow")
}

// Lookup finds a handler by upper case name. It returns nil when the command
// is unknown.
func (cm *cmdMap) Lookup(name []byte) CommandHandler {
	idx := HashBytes(name) & 15
	for i := 0; i < len(cm.buckets); i++ {
		pos := (idx + uint32(i)) & 15
		entry := &cm.buckets[pos]
		if entry.name == nil {
			return nil
		}
		if string(entry.name) == string(name) {
			return entry.handler
		}
	}
	return nil
}
