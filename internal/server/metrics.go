// Package server exposes Prometheus metrics and a health probe over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ohmynofan/questline-bot/internal/platform/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	MetricsPath = "/metrics"
	HealthPath  = "/healthz"
)

// MetricsServer manages the metrics HTTP server.
type MetricsServer struct {
	addr     string
	registry *prometheus.Registry
	server   *http.Server
	listener net.Listener
	log      *logger.ClassLogger
}

func NewMetricsServer(addr string, registry *prometheus.Registry) *MetricsServer {
	m := &MetricsServer{addr: addr, registry: registry}
	m.log = logger.NewLogger(m, nil)
	return m
}

// Handler routes the metrics and health endpoints.
func (m *MetricsServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle(MetricsPath, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	r.Get(HealthPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Start binds the address and serves in the background. A bind failure is
// returned; later serve errors are logged.
func (m *MetricsServer) Start() error {
	ln, err := net.Listen("tcp", m.addr)
	if err != nil {
		return err
	}
	m.listener = ln
	m.server = &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		m.log.Infof("Metrics server listening on %s%s", ln.Addr(), MetricsPath)
		if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Errorf("Metrics server failed: %v", err)
		}
	}()
	return nil
}

// Addr is the bound address once started.
func (m *MetricsServer) Addr() string {
	if m.listener == nil {
		return m.addr
	}
	return m.listener.Addr().String()
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	if err := m.server.Shutdown(ctx); err != nil {
		return err
	}
	m.log.Info("Metrics server stopped")
	return nil
}
