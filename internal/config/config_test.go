package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()

	if cfg.Stats.SeekThreshold != "8MB" {
		t.Errorf("expected default seek threshold 8MB, got %s", cfg.Stats.SeekThreshold)
	}
	if cfg.Cache.SyncInterval != time.Minute {
		t.Errorf("expected default sync interval 1m, got %v", cfg.Cache.SyncInterval)
	}
	if !cfg.Metrics.Enabled {
		t.Error("expected metrics enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}

	threshold, err := cfg.SeekThresholdBytes()
	if err != nil {
		t.Fatalf("SeekThresholdBytes: %v", err)
	}
	if threshold != 8*1024*1024 {
		t.Errorf("expected 8 MiB threshold, got %d", threshold)
	}
}

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"8MB", 8 * 1024 * 1024, false},
		{"512KB", 512 * 1024, false},
		{"1GB", 1 << 30, false},
		{"2TB", 2 << 40, false},
		{"100B", 100, false},
		{"4096", 4096, false},
		{"1.5MB", 1572864, false},
		{" 64 MB ", 64 * 1024 * 1024, false},
		{"8mb", 8 * 1024 * 1024, false},
		{"", 0, true},
		{"abc", 0, true},
		{"-1MB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseByteSize(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q, got %d", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error for %q: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseByteSize(%q): expected %d, got %d", tt.input, tt.want, got)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
stats:
  seek_threshold: 2MB
  block_size: 1MB
cache:
  directory: /tmp/test-cache
  max_size: 100MB
  compression: false
storage:
  bucket: snapshots
  region: eu-west-1
metrics:
  enabled: true
  port: 9191
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefault()
	if err := cfg.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.Stats.SeekThreshold != "2MB" {
		t.Errorf("expected seek threshold 2MB, got %s", cfg.Stats.SeekThreshold)
	}
	if cfg.Storage.Bucket != "snapshots" {
		t.Errorf("expected bucket snapshots, got %s", cfg.Storage.Bucket)
	}
	if cfg.Metrics.Port != 9191 {
		t.Errorf("expected port 9191, got %d", cfg.Metrics.Port)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Stats.OptimizedReadThreshold != "16MB" {
		t.Errorf("expected default optimized read threshold, got %s", cfg.Stats.OptimizedReadThreshold)
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	cfg := NewDefault()
	if err := cfg.LoadFromFile("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BLOBSTATS_SEEK_THRESHOLD", "4MB")
	t.Setenv("BLOBSTATS_CACHE_DIR", "/tmp/env-cache")
	t.Setenv("BLOBSTATS_CACHE_COMPRESSION", "false")
	t.Setenv("BLOBSTATS_BUCKET", "env-bucket")
	t.Setenv("BLOBSTATS_METRICS_PORT", "7070")

	cfg := NewDefault()
	cfg.LoadFromEnv()

	if cfg.Stats.SeekThreshold != "4MB" {
		t.Errorf("expected seek threshold 4MB, got %s", cfg.Stats.SeekThreshold)
	}
	if cfg.Cache.Directory != "/tmp/env-cache" {
		t.Errorf("expected cache dir override, got %s", cfg.Cache.Directory)
	}
	if cfg.Cache.Compression {
		t.Error("expected compression disabled")
	}
	if cfg.Storage.Bucket != "env-bucket" {
		t.Errorf("expected bucket env-bucket, got %s", cfg.Storage.Bucket)
	}
	if cfg.Metrics.Port != 7070 {
		t.Errorf("expected port 7070, got %d", cfg.Metrics.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Configuration)
		wantErr bool
	}{
		{
			name:   "defaults are valid",
			mutate: func(cfg *Configuration) {},
		},
		{
			name:    "bad seek threshold",
			mutate:  func(cfg *Configuration) { cfg.Stats.SeekThreshold = "lots" },
			wantErr: true,
		},
		{
			name:    "bad cache size",
			mutate:  func(cfg *Configuration) { cfg.Cache.MaxSize = "" },
			wantErr: true,
		},
		{
			name:    "negative retries",
			mutate:  func(cfg *Configuration) { cfg.Storage.MaxRetries = -1 },
			wantErr: true,
		},
		{
			name:    "bad metrics port",
			mutate:  func(cfg *Configuration) { cfg.Metrics.Port = 0 },
			wantErr: true,
		},
		{
			name: "metrics port ignored when disabled",
			mutate: func(cfg *Configuration) {
				cfg.Metrics.Enabled = false
				cfg.Metrics.Port = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefault()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}
