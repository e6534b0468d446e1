package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/blobstats/blobstats/internal/cache"
	"github.com/blobstats/blobstats/internal/config"
	"github.com/blobstats/blobstats/internal/metrics"
	"github.com/blobstats/blobstats/internal/reader"
	"github.com/blobstats/blobstats/internal/storage/s3"
)

// Service wires the blob backend, the disk cache and the metrics endpoint
// together from a single configuration. Readers opened through it have
// their access statistics exported automatically.
type Service struct {
	storageURI string
	config     *config.Configuration
	logger     *slog.Logger

	backend *s3.Backend
	cache   *cache.DiskCache
	metrics *metrics.Server
	opts    reader.Options
}

// New creates a service instance for the given s3:// storage URI.
func New(ctx context.Context, storageURI string, cfg *config.Configuration, logger *slog.Logger) (*Service, error) {
	bucket, err := parseStorageURI(storageURI)
	if err != nil {
		return nil, fmt.Errorf("invalid storage URI: %w", err)
	}
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts, err := readerOptions(cfg, logger)
	if err != nil {
		return nil, err
	}

	s3cfg := s3.NewDefaultConfig()
	if cfg.Storage.Region != "" {
		s3cfg.Region = cfg.Storage.Region
	}
	s3cfg.Endpoint = cfg.Storage.Endpoint
	s3cfg.ForcePathStyle = cfg.Storage.ForcePathStyle
	s3cfg.MaxRetries = cfg.Storage.MaxRetries

	backend, err := s3.NewBackend(ctx, bucket, s3cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage backend: %w", err)
	}

	cacheMax, err := cfg.CacheMaxSizeBytes()
	if err != nil {
		return nil, err
	}
	diskCache, err := cache.NewDiskCache(&cache.DiskCacheConfig{
		Directory:    cfg.Cache.Directory,
		MaxSize:      cacheMax,
		Compression:  cfg.Cache.Compression,
		SyncInterval: cfg.Cache.SyncInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create disk cache: %w", err)
	}

	server := metrics.NewServer(&metrics.ServerConfig{
		Enabled: cfg.Metrics.Enabled,
		Port:    cfg.Metrics.Port,
		Path:    cfg.Metrics.Path,
	}, logger)

	return &Service{
		storageURI: storageURI,
		config:     cfg,
		logger:     logger,
		backend:    backend,
		cache:      diskCache,
		metrics:    server,
		opts:       opts,
	}, nil
}

// Start brings up the metrics endpoint.
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("starting blobstats service",
		"storage_uri", s.storageURI,
		"cache_dir", s.config.Cache.Directory,
		"metrics_enabled", s.config.Metrics.Enabled)

	if err := s.metrics.Start(ctx); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	return nil
}

// Open opens a cached reader for the given object key and registers its
// statistics with the metrics endpoint. Each key may be opened once per
// service; reopening the same key returns a registration error.
func (s *Service) Open(ctx context.Context, key string) (*reader.CachedReader, error) {
	opts := s.opts
	r, err := reader.Open(ctx, s.backend, s.cache, key, &opts)
	if err != nil {
		return nil, err
	}
	if err := s.metrics.Register(metrics.NewFileCollector(key, r.Recorder())); err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to register collector for %q: %w", key, err)
	}
	return r, nil
}

// Stop shuts down the metrics endpoint and flushes the cache index.
func (s *Service) Stop(ctx context.Context) error {
	if err := s.metrics.Stop(ctx); err != nil {
		s.logger.Error("failed to stop metrics server", "error", err)
	}
	if err := s.cache.Close(); err != nil {
		return fmt.Errorf("failed to close disk cache: %w", err)
	}
	s.logger.Info("blobstats service stopped")
	return nil
}

func readerOptions(cfg *config.Configuration, logger *slog.Logger) (reader.Options, error) {
	blockSize, err := cfg.BlockSizeBytes()
	if err != nil {
		return reader.Options{}, err
	}
	optimized, err := cfg.OptimizedReadThresholdBytes()
	if err != nil {
		return reader.Options{}, err
	}
	seek, err := cfg.SeekThresholdBytes()
	if err != nil {
		return reader.Options{}, err
	}
	return reader.Options{
		BlockSize:              blockSize,
		OptimizedReadThreshold: optimized,
		SeekThreshold:          seek,
		Logger:                 logger,
	}, nil
}

func parseStorageURI(uri string) (string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("failed to parse URI: %w", err)
	}

	switch parsed.Scheme {
	case "s3":
		if parsed.Host == "" {
			return "", fmt.Errorf("S3 URI must include bucket name")
		}
		return parsed.Host, nil
	default:
		return "", fmt.Errorf("unsupported storage scheme: %s (only s3:// supported)", parsed.Scheme)
	}
}
