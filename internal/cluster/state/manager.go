package state

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/klog/v2"

	"github.com/yevgenykuz/zeebe/internal/cluster/topology"
)

const DefaultSaveDebounce = 100 * time.Millisecond

// TopologyProvider returns the topology to persist on a deferred save.
type TopologyProvider interface {
	CurrentTopology() topology.Topology
}

// Manager writes topologies to a Store. Save persists immediately; MarkDirty
// schedules a save of the provider's current topology after a debounce
// delay, coalescing bursts of updates into one write.
type Manager struct {
	store    Store
	provider TopologyProvider
	debounce time.Duration

	dirty atomic.Bool
	mu    sync.Mutex

	saveCh chan struct{}
	doneCh chan struct{}
	wg     sync.WaitGroup
}

func NewManager(store Store, debounce time.Duration) *Manager {
	if debounce <= 0 {
		debounce = DefaultSaveDebounce
	}
	m := &Manager{
		store:    store,
		debounce: debounce,
		saveCh:   make(chan struct{}, 1),
		doneCh:   make(chan struct{}),
	}

	m.wg.Add(1)
	go m.saveLoop()

	return m
}

func (m *Manager) SetProvider(provider TopologyProvider) {
	m.mu.Lock()
	m.provider = provider
	m.mu.Unlock()
}

func (m *Manager) saveLoop() {
	defer m.wg.Done()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-m.saveCh:
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(m.debounce)
			timerC = timer.C

		case <-timerC:
			timerC = nil
			timer = nil
			if m.dirty.Load() {
				if err := m.saveCurrent(); err != nil {
					klog.ErrorS(err, "Deferred topology save failed")
				}
			}

		case <-m.doneCh:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// MarkDirty schedules a deferred save.
func (m *Manager) MarkDirty() {
	if m.dirty.CompareAndSwap(false, true) {
		select {
		case m.saveCh <- struct{}{}:
		default:
		}
	}
}

func (m *Manager) Load() (topology.Topology, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Load()
}

// Save persists t immediately. A pending deferred save is dropped.
func (m *Manager) Save(t topology.Topology) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(t)
}

func (m *Manager) saveCurrent() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.provider == nil {
		return fmt.Errorf("provider not set")
	}
	return m.save(m.provider.CurrentTopology())
}

func (m *Manager) save(t topology.Topology) error {
	m.dirty.Store(false)
	if err := m.store.Save(t); err != nil {
		m.dirty.Store(true)
		return err
	}
	klog.V(4).InfoS("Persisted topology", "version", t.Version())
	return nil
}

// Close stops the save loop, flushes a pending save and closes the store.
func (m *Manager) Close() error {
	close(m.doneCh)
	m.wg.Wait()

	var flushErr error
	if m.dirty.Load() {
		flushErr = m.saveCurrent()
	}
	if err := m.store.Close(); err != nil {
		return err
	}
	return flushErr
}
