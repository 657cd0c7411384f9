package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/backkem/matter-binding/pkg/storage"
	"github.com/pion/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "pebble", config.Storage.Backend)
	assert.Equal(t, "./data", config.Storage.DataDir)
	assert.False(t, config.Storage.NoSync)
	assert.Equal(t, 8, config.Binding.EntriesPerFabric)
	assert.Equal(t, 5, config.Binding.MaxFabrics)
	assert.False(t, config.Binding.EnforceFabricQuota)
	assert.Equal(t, "error", config.Logging.Level)
	assert.NoError(t, config.Validate())
}

func TestLoadConfig(t *testing.T) {
	t.Run("full file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		content := `storage:
  backend: leveldb
  data_dir: /var/lib/bindings
  no_sync: true
binding:
  entries_per_fabric: 4
  max_fabrics: 10
  enforce_fabric_quota: true
logging:
  level: debug
`
		require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))

		config, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, "leveldb", config.Storage.Backend)
		assert.Equal(t, "/var/lib/bindings", config.Storage.DataDir)
		assert.True(t, config.Storage.NoSync)
		assert.Equal(t, 4, config.Binding.EntriesPerFabric)
		assert.Equal(t, 10, config.Binding.MaxFabrics)
		assert.True(t, config.Binding.EnforceFabricQuota)

		level, err := config.LogLevel()
		require.NoError(t, err)
		assert.Equal(t, logging.LogLevelDebug, level)
	})

	t.Run("partial file keeps defaults", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("storage:\n  backend: memory\n"), 0600))

		config, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, "memory", config.Storage.Backend)
		assert.Equal(t, "./data", config.Storage.DataDir)
		assert.Equal(t, 8, config.Binding.EntriesPerFabric)
	})

	t.Run("empty file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(configPath, nil, 0600))

		config, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), config)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("unknown key", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("storage:\n  engine: pebble\n"), 0600))

		_, err := LoadConfig(configPath)
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("storage: [unclosed"), 0600))

		_, err := LoadConfig(configPath)
		assert.Error(t, err)
	})

	t.Run("invalid values", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("binding:\n  entries_per_fabric: 100\n  max_fabrics: 100\n"), 0600))

		_, err := LoadConfig(configPath)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestSaveConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")
	config := DefaultConfig()
	config.Storage.Backend = "leveldb"
	config.Binding.MaxFabrics = 16

	require.NoError(t, SaveConfig(config, configPath))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, config, loaded)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown backend", func(c *Config) { c.Storage.Backend = "flash" }},
		{"disk backend without dir", func(c *Config) { c.Storage.DataDir = "" }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"zero entries", func(c *Config) { c.Binding.EntriesPerFabric = 0 }},
		{"negative fabrics", func(c *Config) { c.Binding.MaxFabrics = -1 }},
		{"capacity above 254", func(c *Config) { c.Binding.EntriesPerFabric = 51 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			assert.ErrorIs(t, config.Validate(), ErrInvalidConfig)
		})
	}

	t.Run("memory backend without dir", func(t *testing.T) {
		config := DefaultConfig()
		config.Storage.Backend = "memory"
		config.Storage.DataDir = ""
		assert.NoError(t, config.Validate())
	})
}

func TestConfig_Conversions(t *testing.T) {
	config := DefaultConfig()
	config.Binding.EnforceFabricQuota = true
	factory := logging.NewDefaultLoggerFactory()

	tc := config.TableConfig(factory)
	assert.Equal(t, 8, tc.EntriesPerFabric)
	assert.Equal(t, 5, tc.MaxFabrics)
	assert.True(t, tc.EnforceFabricQuota)
	assert.Equal(t, 40, tc.Capacity())
	assert.Same(t, factory, tc.LoggerFactory)

	oc := config.OpenConfig(nil)
	assert.Equal(t, storage.KindPebble, oc.Kind)
	assert.Equal(t, "./data", oc.Path)
}
