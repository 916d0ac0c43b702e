package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MetricsServer serves Prometheus metrics via HTTP while a run is in progress
type MetricsServer struct {
	httpServer *http.Server
	listener   net.Listener
	logger     *zap.Logger
	refresh    func()
	interval   time.Duration
	stopChan   chan struct{}
}

// MetricsServerConfig holds configuration for the metrics server
type MetricsServerConfig struct {
	Port            int
	Path            string
	RefreshInterval time.Duration
	// Refresh, if set, is called every RefreshInterval to update gauges
	Refresh func()
}

// NewMetricsServer creates a new metrics server exposing gatherer
func NewMetricsServer(cfg *MetricsServerConfig, gatherer prometheus.Gatherer, logger *zap.Logger) *MetricsServer {
	mux := http.NewServeMux()

	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}
	interval := cfg.RefreshInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	ms := &MetricsServer{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger:   logger,
		refresh:  cfg.Refresh,
		interval: interval,
		stopChan: make(chan struct{}),
	}

	mux.Handle(path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", ms.healthHandler)

	return ms
}

// Handler returns the HTTP handler
func (s *MetricsServer) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start binds the listen address and serves in the background. Bind
// failures, such as a busy port, are returned to the caller.
func (s *MetricsServer) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("metrics server listen on %s failed: %w", s.httpServer.Addr, err)
	}
	s.listener = ln

	s.logger.Info("Starting metrics server", zap.String("addr", ln.Addr().String()))

	if s.refresh != nil {
		go s.refreshLoop()
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	return nil
}

// Addr returns the bound address, or nil before Start
func (s *MetricsServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop gracefully stops the metrics server
func (s *MetricsServer) Stop() error {
	s.logger.Info("Stopping metrics server")

	close(s.stopChan)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics server shutdown failed: %w", err)
	}

	return nil
}

// healthHandler handles health check requests
func (s *MetricsServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// refreshLoop periodically refreshes gauges
func (s *MetricsServer) refreshLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.refresh()
		case <-s.stopChan:
			return
		}
	}
}
