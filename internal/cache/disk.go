package cache

import (
	"compress/gzip"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DiskCacheConfig represents disk cache configuration
type DiskCacheConfig struct {
	Directory    string        `yaml:"directory"`
	MaxSize      int64         `yaml:"max_size"`
	Compression  bool          `yaml:"compression"`
	IndexFile    string        `yaml:"index_file"`
	SyncInterval time.Duration `yaml:"sync_interval"`
}

// DiskCache is a block cache backed by individual files in a directory.
// It is safe for concurrent use.
type DiskCache struct {
	mu          sync.RWMutex
	directory   string
	maxSize     int64
	currentSize int64
	index       map[string]*blockItem
	config      *DiskCacheConfig

	stopCh chan struct{}
	closed bool
}

// blockItem describes one cached block on disk.
type blockItem struct {
	Key        string    `json:"key"`
	FilePath   string    `json:"file_path"`
	Offset     int64     `json:"offset"`
	Length     int64     `json:"length"`
	StoredSize int64     `json:"stored_size"`
	Timestamp  time.Time `json:"timestamp"`
	AccessTime time.Time `json:"access_time"`
	Compressed bool      `json:"compressed"`
	Checksum   string    `json:"checksum"`
}

// NewDiskCache creates a disk cache rooted at config.Directory, loading any
// index left behind by a previous process.
func NewDiskCache(config *DiskCacheConfig) (*DiskCache, error) {
	if config == nil {
		config = &DiskCacheConfig{
			Directory:    filepath.Join(os.TempDir(), "blobstats-cache"),
			MaxSize:      1 * 1024 * 1024 * 1024, // 1GB
			Compression:  true,
			IndexFile:    "cache-index.json",
			SyncInterval: time.Minute,
		}
	}
	if config.IndexFile == "" {
		config.IndexFile = "cache-index.json"
	}
	if config.SyncInterval <= 0 {
		config.SyncInterval = time.Minute
	}

	if err := os.MkdirAll(config.Directory, 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &DiskCache{
		directory: config.Directory,
		maxSize:   config.MaxSize,
		index:     make(map[string]*blockItem),
		config:    config,
		stopCh:    make(chan struct{}),
	}

	if err := c.loadIndex(); err != nil {
		return nil, fmt.Errorf("failed to load cache index: %w", err)
	}

	go c.syncIndex()

	return c, nil
}

// Get returns the cached block covering exactly (key, offset, length), or
// nil on a miss. Corrupted or missing files are dropped from the index and
// reported as misses.
func (c *DiskCache) Get(key string, offset, length int64) []byte {
	blockKey := makeBlockKey(key, offset, length)

	c.mu.RLock()
	item, exists := c.index[blockKey]
	c.mu.RUnlock()

	if !exists {
		return nil
	}

	data, err := c.readBlock(item)
	if err != nil {
		c.mu.Lock()
		if current, still := c.index[blockKey]; still && current == item {
			delete(c.index, blockKey)
			c.currentSize -= item.StoredSize
		}
		c.mu.Unlock()
		return nil
	}

	c.mu.Lock()
	item.AccessTime = time.Now()
	c.mu.Unlock()

	return data
}

// Put stores a block fetched from the blob store.
func (c *DiskCache) Put(key string, offset int64, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("cache is closed")
	}

	blockKey := makeBlockKey(key, offset, int64(len(data)))

	if existing, exists := c.index[blockKey]; exists {
		_ = os.Remove(existing.FilePath)
		c.currentSize -= existing.StoredSize
	}

	item := &blockItem{
		Key:        blockKey,
		Offset:     offset,
		Length:     int64(len(data)),
		Timestamp:  time.Now(),
		AccessTime: time.Now(),
		Compressed: c.config.Compression,
		Checksum:   checksum(data),
	}
	item.FilePath = c.blockFilePath(blockKey)

	storedSize, err := c.writeBlock(item, data)
	if err != nil {
		return fmt.Errorf("failed to write cache block: %w", err)
	}
	item.StoredSize = storedSize

	c.index[blockKey] = item
	c.currentSize += storedSize

	c.evictIfNeeded()

	return nil
}

// Size returns the current on-disk size of all cached blocks.
func (c *DiskCache) Size() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentSize
}

// Len returns the number of cached blocks.
func (c *DiskCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.index)
}

// Close stops the index sync goroutine and writes the index a final time.
func (c *DiskCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.stopCh)

	return c.saveIndex()
}

// Helper methods

func makeBlockKey(key string, offset, length int64) string {
	return fmt.Sprintf("%s:%d:%d", key, offset, length)
}

func (c *DiskCache) blockFilePath(blockKey string) string {
	hash := sha256.Sum256([]byte(blockKey))
	return filepath.Join(c.directory, fmt.Sprintf("%x.cache", hash[:8]))
}

func checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}

func (c *DiskCache) writeBlock(item *blockItem, data []byte) (int64, error) {
	file, err := os.Create(item.FilePath)
	if err != nil {
		return 0, err
	}
	defer func() { _ = file.Close() }()

	var writer io.Writer = file
	var gz *gzip.Writer
	if item.Compressed {
		gz = gzip.NewWriter(file)
		writer = gz
	}

	if _, err := writer.Write(data); err != nil {
		_ = os.Remove(item.FilePath)
		return 0, err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			_ = os.Remove(item.FilePath)
			return 0, err
		}
	}

	stat, err := file.Stat()
	if err != nil {
		return int64(len(data)), nil
	}
	return stat.Size(), nil
}

func (c *DiskCache) readBlock(item *blockItem) ([]byte, error) {
	file, err := os.Open(item.FilePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var reader io.Reader = file
	if item.Compressed {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, err
		}
		defer func() { _ = gz.Close() }()
		reader = gz
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if checksum(data) != item.Checksum {
		return nil, fmt.Errorf("checksum mismatch for cached block")
	}

	return data, nil
}

// evictIfNeeded removes least recently accessed blocks until the cache fits
// its maximum size again. Caller must hold the write lock.
func (c *DiskCache) evictIfNeeded() {
	for c.currentSize > c.maxSize {
		if !c.evictOldest() {
			break
		}
	}
}

func (c *DiskCache) evictOldest() bool {
	var oldestKey string
	var oldest *blockItem
	for key, item := range c.index {
		if oldest == nil || item.AccessTime.Before(oldest.AccessTime) {
			oldestKey = key
			oldest = item
		}
	}
	if oldest == nil {
		return false
	}

	_ = os.Remove(oldest.FilePath)
	delete(c.index, oldestKey)
	c.currentSize -= oldest.StoredSize
	return true
}

func (c *DiskCache) loadIndex() error {
	indexPath := filepath.Join(c.directory, c.config.IndexFile)
	if !strings.HasPrefix(filepath.Clean(indexPath), filepath.Clean(c.directory)) {
		return fmt.Errorf("invalid index file path: %s", indexPath)
	}

	file, err := os.Open(indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer func() { _ = file.Close() }()

	var items map[string]*blockItem
	if err := json.NewDecoder(file).Decode(&items); err != nil {
		return err
	}

	c.currentSize = 0
	for key, item := range items {
		if _, err := os.Stat(item.FilePath); os.IsNotExist(err) {
			continue
		}
		c.index[key] = item
		c.currentSize += item.StoredSize
	}

	return nil
}

// saveIndex writes the index atomically. Caller must hold at least the read
// lock.
func (c *DiskCache) saveIndex() error {
	indexPath := filepath.Join(c.directory, c.config.IndexFile)
	tmpPath := indexPath + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	if err := json.NewEncoder(file).Encode(c.index); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, indexPath)
}

func (c *DiskCache) syncIndex() {
	ticker := time.NewTicker(c.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.RLock()
			_ = c.saveIndex()
			c.mu.RUnlock()
		}
	}
}
