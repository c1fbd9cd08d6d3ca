// Package config handles application configuration.
//
// Configuration is split into two categories:
//   - Protocol rules: consensus Params, immutable, must match across all nodes
//   - Node settings: Runtime configuration, can vary per node
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// NetworkType identifies the parameter set a node runs.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Regtest NetworkType = "regtest"
)

// DB backends.
const (
	BackendBadger = "badger"
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

// =============================================================================
// Node Configuration (runtime, per-node settings)
// =============================================================================

// Config holds node-specific runtime configuration.
// These settings can vary between nodes without breaking consensus.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// ParamsFile overrides the built-in consensus parameters (JSON or YAML).
	ParamsFile string `conf:"params"`

	// Storage
	DB DBConfig

	// Validation worker pool size; 0 means one per CPU.
	Workers int `conf:"workers"`

	// Block import and checkpoint files processed at startup.
	ImportFile     string `conf:"import"`
	CheckpointFile string `conf:"checkpoint"`

	// Metrics
	Metrics MetricsConfig

	// Logging
	Log LogConfig
}

// DBConfig holds storage settings.
type DBConfig struct {
	Backend     string `conf:"db.backend"`     // badger, bolt or memory
	CacheBlocks int    `conf:"db.cacheblocks"` // decoded blocks kept in memory
}

// MetricsConfig holds Prometheus exporter settings.
type MetricsConfig struct {
	Enabled bool   `conf:"metrics.enabled"`
	Addr    string `conf:"metrics.addr"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.novanet
//	macOS:   ~/Library/Application Support/Novanet
//	Windows: %APPDATA%\Novanet
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".novanet"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Novanet")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Novanet")
		}
		return filepath.Join(home, "AppData", "Roaming", "Novanet")
	default:
		return filepath.Join(home, ".novanet")
	}
}

// ChainDataDir returns the network-specific data directory.
func (c *Config) ChainDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// ChainDBPath returns the chain database path.
func (c *Config) ChainDBPath() string {
	if c.DB.Backend == BackendBolt {
		return filepath.Join(c.ChainDataDir(), "chain.db")
	}
	return filepath.Join(c.ChainDataDir(), "chain")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "novanet.conf")
}
