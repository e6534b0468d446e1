package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServerConfig represents metrics endpoint configuration
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// Server serves a prometheus registry over HTTP.
type Server struct {
	config   *ServerConfig
	registry *prometheus.Registry
	logger   *slog.Logger
	server   *http.Server
}

// NewServer creates a metrics server around its own registry.
func NewServer(config *ServerConfig, logger *slog.Logger) *Server {
	if config == nil {
		config = &ServerConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		}
	}
	if config.Path == "" {
		config.Path = "/metrics"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		config:   config,
		registry: prometheus.NewRegistry(),
		logger:   logger,
	}
}

// Register adds a collector (typically a FileCollector) to the registry.
func (s *Server) Register(c prometheus.Collector) error {
	return s.registry.Register(c)
}

// Start begins serving the metrics endpoint in the background.
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(s.config.Path, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the endpoint down.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
