package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const readHeaderTimeout = 10 * time.Second

// Exporter serves a registry over HTTP at /metrics with a /health probe.
type Exporter struct {
	addr     string
	registry *prometheus.Registry

	mu     sync.Mutex
	server *http.Server
	closed bool
}

// NewRegistry returns a registry preloaded with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// NewExporter builds an exporter for reg listening on addr.
func NewExporter(addr string, reg *prometheus.Registry) *Exporter {
	return &Exporter{addr: addr, registry: reg}
}

// Handler returns the /metrics and /health mux.
func (e *Exporter) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Start serves until Shutdown. It returns nil after a graceful stop.
func (e *Exporter) Start() error {
	e.mu.Lock()
	if e.server != nil || e.closed {
		e.mu.Unlock()
		return nil
	}
	e.server = &http.Server{
		Addr:              e.addr,
		Handler:           e.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	srv := e.server
	e.mu.Unlock()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server. A later Start is a no-op.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if e.server == nil {
		return nil
	}
	err := e.server.Shutdown(ctx)
	e.server = nil
	return err
}
