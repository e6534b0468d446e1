// Package config holds the construction-time configuration for cached
// readers, the disk cache, the S3 backend, and the metrics endpoint.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Configuration represents the complete application configuration
type Configuration struct {
	Stats   StatsConfig   `yaml:"stats"`
	Cache   CacheConfig   `yaml:"cache"`
	Storage StorageConfig `yaml:"storage"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// StatsConfig tunes the per-file access recorder and the read paths that
// feed it. Sizes are human-readable strings ("8MB", "512KB").
type StatsConfig struct {
	SeekThreshold          string `yaml:"seek_threshold"`
	BlockSize              string `yaml:"block_size"`
	OptimizedReadThreshold string `yaml:"optimized_read_threshold"`
}

// CacheConfig represents local disk cache settings
type CacheConfig struct {
	Directory    string        `yaml:"directory"`
	MaxSize      string        `yaml:"max_size"`
	Compression  bool          `yaml:"compression"`
	SyncInterval time.Duration `yaml:"sync_interval"`
}

// StorageConfig represents blob store settings
type StorageConfig struct {
	Bucket         string `yaml:"bucket"`
	Region         string `yaml:"region"`
	Endpoint       string `yaml:"endpoint"`
	ForcePathStyle bool   `yaml:"force_path_style"`
	MaxRetries     int    `yaml:"max_retries"`
}

// MetricsConfig represents metrics endpoint settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Stats: StatsConfig{
			SeekThreshold:          "8MB",
			BlockSize:              "4MB",
			OptimizedReadThreshold: "16MB",
		},
		Cache: CacheConfig{
			Directory:    "/var/cache/blobstats",
			MaxSize:      "1GB",
			Compression:  true,
			SyncInterval: time.Minute,
		},
		Storage: StorageConfig{
			Region:     "us-east-1",
			MaxRetries: 3,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv loads configuration from environment variables
func (c *Configuration) LoadFromEnv() {
	if val := os.Getenv("BLOBSTATS_SEEK_THRESHOLD"); val != "" {
		c.Stats.SeekThreshold = val
	}
	if val := os.Getenv("BLOBSTATS_BLOCK_SIZE"); val != "" {
		c.Stats.BlockSize = val
	}
	if val := os.Getenv("BLOBSTATS_CACHE_DIR"); val != "" {
		c.Cache.Directory = val
	}
	if val := os.Getenv("BLOBSTATS_CACHE_MAX_SIZE"); val != "" {
		c.Cache.MaxSize = val
	}
	if val := os.Getenv("BLOBSTATS_CACHE_COMPRESSION"); val != "" {
		c.Cache.Compression = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("BLOBSTATS_BUCKET"); val != "" {
		c.Storage.Bucket = val
	}
	if val := os.Getenv("BLOBSTATS_REGION"); val != "" {
		c.Storage.Region = val
	}
	if val := os.Getenv("BLOBSTATS_ENDPOINT"); val != "" {
		c.Storage.Endpoint = val
	}
	if val := os.Getenv("BLOBSTATS_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Metrics.Port = port
		}
	}
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	sizes := map[string]string{
		"stats.seek_threshold":           c.Stats.SeekThreshold,
		"stats.block_size":               c.Stats.BlockSize,
		"stats.optimized_read_threshold": c.Stats.OptimizedReadThreshold,
		"cache.max_size":                 c.Cache.MaxSize,
	}
	for field, value := range sizes {
		if _, err := ParseByteSize(value); err != nil {
			return fmt.Errorf("invalid %s: %w", field, err)
		}
	}

	if c.Storage.MaxRetries < 0 {
		return fmt.Errorf("storage.max_retries cannot be negative")
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("invalid metrics.port: %d", c.Metrics.Port)
	}

	return nil
}

// SeekThresholdBytes returns the parsed small/large seek boundary.
func (c *Configuration) SeekThresholdBytes() (int64, error) {
	return ParseByteSize(c.Stats.SeekThreshold)
}

// BlockSizeBytes returns the parsed cache fill granularity.
func (c *Configuration) BlockSizeBytes() (int64, error) {
	return ParseByteSize(c.Stats.BlockSize)
}

// OptimizedReadThresholdBytes returns the parsed cache-bypass read size.
func (c *Configuration) OptimizedReadThresholdBytes() (int64, error) {
	return ParseByteSize(c.Stats.OptimizedReadThreshold)
}

// CacheMaxSizeBytes returns the parsed disk cache capacity.
func (c *Configuration) CacheMaxSizeBytes() (int64, error) {
	return ParseByteSize(c.Cache.MaxSize)
}

// ParseByteSize parses a human-readable size such as "8MB", "512KB", or a
// plain byte count.
func ParseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	multipliers := []struct {
		suffix string
		factor int64
	}{
		{"TB", 1 << 40},
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}

	for _, m := range multipliers {
		if strings.HasSuffix(s, m.suffix) {
			num := strings.TrimSpace(strings.TrimSuffix(s, m.suffix))
			value, err := strconv.ParseFloat(num, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid size %q", s)
			}
			if value < 0 {
				return 0, fmt.Errorf("negative size %q", s)
			}
			return int64(value * float64(m.factor)), nil
		}
	}

	value, err := strconv.ParseInt(s, 10, 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return value, nil
}
