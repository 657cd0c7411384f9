// Package config loads the YAML configuration of the matter-binding tool.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/backkem/matter-binding/pkg/binding"
	"github.com/backkem/matter-binding/pkg/fabric"
	"github.com/backkem/matter-binding/pkg/storage"
	"github.com/pion/logging"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the tool configuration.
type Config struct {
	Storage Storage `yaml:"storage"`
	Binding Binding `yaml:"binding"`
	Logging Logging `yaml:"logging"`
}

// Storage selects the persistent store.
type Storage struct {
	Backend string `yaml:"backend"`
	DataDir string `yaml:"data_dir"`
	NoSync  bool   `yaml:"no_sync"`
}

// Binding sizes the binding table.
type Binding struct {
	EntriesPerFabric   int  `yaml:"entries_per_fabric"`
	MaxFabrics         int  `yaml:"max_fabrics"`
	EnforceFabricQuota bool `yaml:"enforce_fabric_quota"`
}

// Logging contains logging configuration
type Logging struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Storage: Storage{
			Backend: string(storage.KindPebble),
			DataDir: "./data",
		},
		Binding: Binding{
			EntriesPerFabric: binding.DefaultEntriesPerFabric,
			MaxFabrics:       fabric.DefaultSupportedFabrics,
		},
		Logging: Logging{
			Level: "error",
		},
	}
}

// LoadConfig reads the file at configPath over DefaultConfig. Unknown keys
// are rejected.
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig writes config to configPath, creating its directory.
func SaveConfig(config *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the backend, log level and table size.
func (c *Config) Validate() error {
	if !storage.Kind(c.Storage.Backend).Valid() {
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, c.Storage.Backend)
	}
	if storage.Kind(c.Storage.Backend) != storage.KindMemory && c.Storage.DataDir == "" {
		return fmt.Errorf("%w: storage.data_dir is required for %s", ErrInvalidConfig, c.Storage.Backend)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if c.Binding.EntriesPerFabric <= 0 || c.Binding.MaxFabrics <= 0 {
		return fmt.Errorf("%w: binding sizes must be positive", ErrInvalidConfig)
	}
	if err := c.TableConfig(nil).Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// LogLevel parses Logging.Level.
func (c *Config) LogLevel() (logging.LogLevel, error) {
	switch strings.ToLower(c.Logging.Level) {
	case "disable", "disabled", "off":
		return logging.LogLevelDisabled, nil
	case "", "error":
		return logging.LogLevelError, nil
	case "warn", "warning":
		return logging.LogLevelWarn, nil
	case "info":
		return logging.LogLevelInfo, nil
	case "debug":
		return logging.LogLevelDebug, nil
	case "trace":
		return logging.LogLevelTrace, nil
	default:
		return logging.LogLevelDisabled, fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Logging.Level)
	}
}

// TableConfig returns the binding table configuration.
func (c *Config) TableConfig(factory logging.LoggerFactory) binding.TableConfig {
	return binding.TableConfig{
		EntriesPerFabric:   c.Binding.EntriesPerFabric,
		MaxFabrics:         c.Binding.MaxFabrics,
		EnforceFabricQuota: c.Binding.EnforceFabricQuota,
		Keys:               storage.DefaultKeyAllocator{},
		LoggerFactory:      factory,
	}
}

// OpenConfig returns the storage configuration.
func (c *Config) OpenConfig(factory logging.LoggerFactory) storage.OpenConfig {
	return storage.OpenConfig{
		Kind:          storage.Kind(c.Storage.Backend),
		Path:          c.Storage.DataDir,
		NoSync:        c.Storage.NoSync,
		LoggerFactory: factory,
	}
}
