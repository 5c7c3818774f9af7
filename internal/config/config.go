// Package config loads and hot-reloads the server's YAML configuration
// file, grounded on storage/settings.go (a flat table of runtime-
// tunable knobs) generalized from an in-database settings table to a
// YAML file on disk, watched with github.com/fsnotify/fsnotify the way
// storage/schema_fs.go watches the data directory for external
// changes.
package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"

	"github.com/fsnotify/fsnotify"
)

// Config is the full set of knobs the server binary reads at startup.
// Byte-size fields are written in the YAML file as human strings (e.g.
// "256MiB") and parsed with docker/go-units, so operators can write
// config by hand rather than in raw bytes.
type Config struct {
	DatabasePath string `yaml:"database_path"`
	SocketPath   string `yaml:"socket_path"`

	ShardCount           int `yaml:"shard_count"`
	EnrichmentShardCount int `yaml:"enrichment_shard_count"`

	FlushNodeThreshold      int    `yaml:"flush_node_threshold"`
	FlushMemoryThreshold    string `yaml:"flush_memory_threshold"`
	flushMemoryThresholdBytes int64 `yaml:"-"`

	CompressColumns bool `yaml:"compress_columns"`

	LogLevel string `yaml:"log_level"`

	DebugHTTPAddr string `yaml:"debug_http_addr"`

	PersistenceBackend string `yaml:"persistence_backend"` // "fs" | "s3" | "ceph"
	S3Bucket           string `yaml:"s3_bucket"`
	S3Prefix           string `yaml:"s3_prefix"`
	CephPool           string `yaml:"ceph_pool"`
	CephConfigPath     string `yaml:"ceph_config_path"`
}

// FlushMemoryThresholdBytes returns the parsed byte threshold.
func (c *Config) FlushMemoryThresholdBytes() int64 { return c.flushMemoryThresholdBytes }

func defaults() Config {
	return Config{
		DatabasePath:         "./data",
		SocketPath:           "./data/graphengine.sock",
		ShardCount:           16,
		EnrichmentShardCount: 8,
		FlushNodeThreshold:   50_000,
		FlushMemoryThreshold: "128MiB",
		CompressColumns:      true,
		LogLevel:             "info",
		PersistenceBackend:   "fs",
	}
}

// Load reads and validates the YAML config file at path, filling in
// defaults for anything left unset.
func Load(path string) (*Config, error) {
	cfg := defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) finalize() error {
	if c.FlushMemoryThreshold == "" {
		c.FlushMemoryThreshold = "128MiB"
	}
	bytes, err := units.RAMInBytes(c.FlushMemoryThreshold)
	if err != nil {
		return fmt.Errorf("config: flush_memory_threshold %q: %w", c.FlushMemoryThreshold, err)
	}
	c.flushMemoryThresholdBytes = bytes
	if c.ShardCount < 1 {
		c.ShardCount = 1
	}
	if c.EnrichmentShardCount < 1 {
		c.EnrichmentShardCount = 1
	}
	switch c.PersistenceBackend {
	case "", "fs", "s3", "ceph":
	default:
		return fmt.Errorf("config: unknown persistence_backend %q", c.PersistenceBackend)
	}
	return nil
}

// Watcher reloads log_level and the flush thresholds whenever the
// config file changes on disk, reacting to live settings edits without
// a restart. Only those fields are hot-reloadable; shard counts and
// the persistence backend require a restart because they are baked
// into routing and already-open segments.
type Watcher struct {
	path string
	mu   sync.RWMutex
	cur  *Config
	fsw  *fsnotify.Watcher
	onUpdate func(*Config)
}

// NewWatcher starts watching path for changes, invoking onUpdate (if
// non-nil) every time a reload succeeds.
func NewWatcher(path string, initial *Config, onUpdate func(*Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: start watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w := &Watcher{path: path, cur: initial, fsw: fsw, onUpdate: onUpdate}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			reloaded, err := Load(w.path)
			if err != nil {
				continue // keep serving the last good config
			}
			w.mu.Lock()
			w.cur.applyHotFields(reloaded)
			w.mu.Unlock()
			if w.onUpdate != nil {
				w.onUpdate(w.Current())
			}
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

// applyHotFields copies only the fields this engine can safely
// change without a restart.
func (c *Config) applyHotFields(from *Config) {
	c.LogLevel = from.LogLevel
	c.FlushNodeThreshold = from.FlushNodeThreshold
	c.FlushMemoryThreshold = from.FlushMemoryThreshold
	c.flushMemoryThresholdBytes = from.flushMemoryThresholdBytes
}

// Current returns a copy of the watcher's current config.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	cp := *w.cur
	return &cp
}

// Close stops the watcher.
func (w *Watcher) Close() error { return w.fsw.Close() }
