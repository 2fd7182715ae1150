package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "requisite", cfg.Name)
	assert.Equal(t, 16, cfg.Patterns.WindowSize)
	assert.Equal(t, 0.8, cfg.Patterns.EmergenceThreshold)
	assert.Equal(t, 1.0, cfg.Variety.InitialCapacity)
	assert.Equal(t, 0.85, cfg.Variety.ExplosionThreshold)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ws := t.TempDir()

	cfg := DefaultConfig()
	cfg.Variety.InitialCapacity = 2.5
	cfg.Scanner.DefaultScope = "partial"
	cfg.Logging.DebugMode = true
	require.NoError(t, cfg.Save(ws))

	loaded, err := Load(ws)
	require.NoError(t, err)
	assert.Equal(t, 2.5, loaded.Variety.InitialCapacity)
	assert.Equal(t, "partial", loaded.Scanner.DefaultScope)
	assert.True(t, loaded.Logging.DebugMode)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("REQUISITE_LOG_LEVEL", "debug")
	t.Setenv("REQUISITE_DEBUG", "true")
	t.Setenv("REQUISITE_DB_PATH", "/tmp/other.db")
	t.Setenv("REQUISITE_SCAN_INTERVAL", "250ms")
	t.Setenv("REQUISITE_INITIAL_CAPACITY", "3.0")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.DebugMode)
	assert.Equal(t, "/tmp/other.db", cfg.Store.DatabasePath)
	assert.Equal(t, 250*time.Millisecond, cfg.ScanInterval())
	assert.Equal(t, 3.0, cfg.Variety.InitialCapacity)
}

func TestEnvOverrideRejectsBadValues(t *testing.T) {
	t.Setenv("REQUISITE_INITIAL_CAPACITY", "-1")
	t.Setenv("REQUISITE_DEBUG", "maybe")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 1.0, cfg.Variety.InitialCapacity)
	assert.False(t, cfg.Logging.DebugMode)
}

func TestDurationFallbacks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scanner.Interval = "not-a-duration"
	cfg.Variety.TickInterval = "-5s"
	cfg.Adaptation.MonitorInterval = ""

	assert.Equal(t, time.Second, cfg.ScanInterval())
	assert.Equal(t, 5*time.Second, cfg.VarietyTickInterval())
	assert.Equal(t, 10*time.Second, cfg.AdaptationMonitorInterval())
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	ws := t.TempDir()
	path := ConfigPath(ws)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("variety: [broken"), 0644))

	_, err := Load(ws)
	assert.Error(t, err)
}

func TestWatcherFiresOnChange(t *testing.T) {
	ws := t.TempDir()
	cfg := DefaultConfig()
	require.NoError(t, cfg.Save(ws))

	changes := make(chan *Config, 1)
	w := NewWatcher(ws, func(c *Config) {
		select {
		case changes <- c:
		default:
		}
	})
	require.NoError(t, w.Start())
	defer w.Stop()

	cfg.Variety.InitialCapacity = 4.0
	require.NoError(t, cfg.Save(ws))

	select {
	case updated := <-changes:
		assert.Equal(t, 4.0, updated.Variety.InitialCapacity)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher never reported the config change")
	}
}
