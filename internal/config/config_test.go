package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "graphengine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "database_path: /var/lib/graphengine\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/graphengine", cfg.DatabasePath)
	assert.Equal(t, 16, cfg.ShardCount)
	assert.Equal(t, int64(128*1024*1024), cfg.FlushMemoryThresholdBytes())
}

func TestLoadParsesByteSize(t *testing.T) {
	path := writeConfig(t, "flush_memory_threshold: \"512MiB\"\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(512*1024*1024), cfg.FlushMemoryThresholdBytes())
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	path := writeConfig(t, "persistence_backend: carrier-pigeon\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestWatcherReloadsHotFields(t *testing.T) {
	path := writeConfig(t, "log_level: info\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	updates := make(chan *Config, 1)
	w, err := NewWatcher(path, cfg, func(c *Config) { updates <- c })
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0o644))

	select {
	case updated := <-updates:
		assert.Equal(t, "debug", updated.LogLevel)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}
