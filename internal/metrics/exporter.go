package metrics

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const collectInterval = 15 * time.Second

// Exporter exposes metrics via HTTP
type Exporter struct {
	addr      string
	collector *Collector
	server    *http.Server

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewExporter creates a metrics exporter
func NewExporter(addr string, collector *Collector) *Exporter {
	if collector == nil {
		collector = NewCollector()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &Exporter{
		addr:      addr,
		collector: collector,
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		stopCh: make(chan struct{}),
	}
}

// Start collects once, then serves until Stop is called
func (e *Exporter) Start() error {
	e.collector.Collect()

	go func() {
		ticker := time.NewTicker(collectInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.collector.Collect()
			case <-e.stopCh:
				return
			}
		}
	}()

	if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the exporter
func (e *Exporter) Stop() error {
	e.stopOnce.Do(func() { close(e.stopCh) })
	return e.server.Close()
}
