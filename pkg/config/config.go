// Package config provides hierarchical configuration management.
// Priority: defaults < user < project < env < flags
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all tracenav configuration.
type Config struct {
	Version int `yaml:"version"`

	Report    ReportConfig    `yaml:"report"`
	Parser    ParserConfig    `yaml:"parser"`
	Watch     WatchConfig     `yaml:"watch"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ReportConfig controls default rendering behavior.
type ReportConfig struct {
	// OutputDir is the default report destination.
	OutputDir string `yaml:"output_dir"`

	// PlainText disables payload syntax highlighting.
	PlainText bool `yaml:"plain_text"`

	// CustomHeaderHTML is injected at the top of every index page.
	CustomHeaderHTML string `yaml:"custom_header_html"`

	// Parallel renders report modules concurrently.
	Parallel bool `yaml:"parallel"`
}

// ParserConfig controls ingestion.
type ParserConfig struct {
	// BufferSize is the line read buffer in bytes. 0 = default.
	BufferSize int `yaml:"buffer_size"`

	// Strict turns unparseable log lines into run failures.
	Strict bool `yaml:"strict"`
}

// WatchConfig controls the re-render watcher.
type WatchConfig struct {
	// Debounce is how long to wait after the last write before re-running.
	Debounce time.Duration `yaml:"debounce"`
}

// TelemetryConfig for optional OTLP span export.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Report: ReportConfig{
			OutputDir: "tracenav_report",
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
		Telemetry: TelemetryConfig{
			Enabled:  false,
			Endpoint: "localhost:4317",
		},
	}
}

// Manager handles configuration loading and merging.
type Manager struct {
	mu      sync.RWMutex
	config  *Config
	paths   []string
	loadErr error
}

// NewManager creates a new configuration manager.
func NewManager() *Manager {
	return &Manager{config: Default()}
}

// Load loads configuration from all sources in priority order. The error is
// also retained for LoadError, so callers reaching the manager through
// Global can still see a failed load.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config = Default()
	m.paths = nil
	m.loadErr = nil

	for _, path := range m.configPaths() {
		if err := m.loadFile(path); err != nil {
			if !os.IsNotExist(err) {
				m.loadErr = fmt.Errorf("load %s: %w", path, err)
				return m.loadErr
			}
			continue
		}
		m.paths = append(m.paths, path)
	}

	m.loadEnv()
	return nil
}

// LoadError returns the error from the most recent Load, if any.
func (m *Manager) LoadError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadErr
}

// configPaths returns config file paths in priority order, lowest first.
func (m *Manager) configPaths() []string {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".tracenav", "config.yaml"))
	}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".tracenav.yaml"))
	}
	return paths
}

// loadFile loads a single config file and merges it.
func (m *Manager) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var partial Config
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return err
	}
	m.merge(&partial)
	return nil
}

// merge merges non-zero values from src into config. Booleans merge
// true-wins: a file can enable a mode but not disable one a lower layer
// turned on.
func (m *Manager) merge(src *Config) {
	if src.Report.OutputDir != "" {
		m.config.Report.OutputDir = src.Report.OutputDir
	}
	if src.Report.CustomHeaderHTML != "" {
		m.config.Report.CustomHeaderHTML = src.Report.CustomHeaderHTML
	}
	if src.Report.PlainText {
		m.config.Report.PlainText = true
	}
	if src.Report.Parallel {
		m.config.Report.Parallel = true
	}

	if src.Parser.BufferSize != 0 {
		m.config.Parser.BufferSize = src.Parser.BufferSize
	}
	if src.Parser.Strict {
		m.config.Parser.Strict = true
	}

	if src.Watch.Debounce != 0 {
		m.config.Watch.Debounce = src.Watch.Debounce
	}

	if src.Telemetry.Enabled {
		m.config.Telemetry.Enabled = true
	}
	if src.Telemetry.Endpoint != "" {
		m.config.Telemetry.Endpoint = src.Telemetry.Endpoint
	}
}

// loadEnv loads configuration from environment variables.
func (m *Manager) loadEnv() {
	if v := os.Getenv("TRACENAV_OUTPUT_DIR"); v != "" {
		m.config.Report.OutputDir = v
	}
	if v := os.Getenv("TRACENAV_PARALLEL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			m.config.Report.Parallel = b
		}
	}
	if v := os.Getenv("TRACENAV_STRICT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			m.config.Parser.Strict = b
		}
	}
	if v := os.Getenv("TRACENAV_OTLP_ENDPOINT"); v != "" {
		m.config.Telemetry.Enabled = true
		m.config.Telemetry.Endpoint = v
	}
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetPaths returns the config file paths that were loaded.
func (m *Manager) GetPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paths
}

// Save writes the current config to the user config file.
func (m *Manager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	configDir := filepath.Join(home, ".tracenav")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(m.config)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(configDir, "config.yaml"), data, 0o644)
}

// Global instance
var (
	globalManager *Manager
	globalOnce    sync.Once
)

// Global returns the global configuration manager. A failed initial Load is
// not fatal here; it is retained and surfaced through LoadError.
func Global() *Manager {
	globalOnce.Do(func() {
		globalManager = NewManager()
		_ = globalManager.Load()
	})
	return globalManager
}
