package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pagecast/pagecast/internal/logger"
	"gopkg.in/yaml.v3"
)

// App is the application-level configuration. Per-surface settings live in
// the surface store (see Store), not here.
type App struct {
	ServerPort int    `json:"server_port" yaml:"server_port"`
	LogLevel   string `json:"log_level" yaml:"log_level"`
	LogPretty  bool   `json:"log_pretty" yaml:"log_pretty"`

	// Engine selects the rendering engine ("sim" or "x11"); Sink selects
	// the network video transport ("mjpeg" or "gst").
	Engine  string `json:"engine" yaml:"engine"`
	Sink    string `json:"sink" yaml:"sink"`
	GstPort int    `json:"gst_port" yaml:"gst_port"`

	// SurfacesFile is the surface store path; a relative value is
	// resolved against the config directory.
	SurfacesFile string `json:"surfaces_file" yaml:"surfaces_file"`

	Preview PreviewConfig  `json:"preview" yaml:"preview"`
	Stats   StatsConfig    `json:"stats" yaml:"stats"`
	Usage   UsageConfig    `json:"usage" yaml:"usage"`
	Display FallbackConfig `json:"display" yaml:"display"`
}

// PreviewConfig sets the console preview resolution.
type PreviewConfig struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// StatsConfig tunes the per-surface latency trackers. Window 0 means
// "use the surface's target frame rate"; EmitEvery 0 means half the window.
type StatsConfig struct {
	Window    int `json:"window" yaml:"window"`
	EmitEvery int `json:"emit_every" yaml:"emit_every"`
}

// UsageConfig tunes the CPU usage monitor.
type UsageConfig struct {
	IntervalSeconds int `json:"interval_seconds" yaml:"interval_seconds"`
}

// FallbackConfig describes the display assumed when no windowing system
// can be queried.
type FallbackConfig struct {
	Width     int     `json:"width" yaml:"width"`
	Height    int     `json:"height" yaml:"height"`
	RefreshHz int     `json:"refresh_hz" yaml:"refresh_hz"`
	Scale     float64 `json:"scale" yaml:"scale"`
}

// Manager loads, caches, and saves the application config file.
type Manager struct {
	configPath string
	config     *App
	mu         sync.RWMutex
}

// NewManager opens the config at configFile, or the default location
// (~/.config/pagecast/config.yaml) when empty. A missing file is created
// with defaults.
func NewManager(configFile string) (*Manager, error) {
	path := configFile
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, ".config", "pagecast", "config.yaml")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	m := &Manager{configPath: path}

	if err := m.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logger.WithComponent("config").Info().
			Str("path", path).
			Msg("Config file not found, writing defaults")
		m.config = Defaults()
		if err := m.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	return m, nil
}

// Defaults returns the stock application configuration.
func Defaults() *App {
	return &App{
		ServerPort:   8089,
		LogLevel:     "info",
		Engine:       "sim",
		Sink:         "mjpeg",
		GstPort:      5001,
		SurfacesFile: "surfaces.yaml",
		Preview:      PreviewConfig{Width: 128, Height: 72},
		Stats:        StatsConfig{},
		Usage:        UsageConfig{IntervalSeconds: 2},
		Display: FallbackConfig{
			Width:     1920,
			Height:    1080,
			RefreshHz: 60,
			Scale:     1.0,
		},
	}
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Config loaded")
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() *App {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return Defaults()
	}
	cfg := *m.config
	return &cfg
}

// Save writes the current configuration to disk.
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	if cfg == nil {
		cfg = Defaults()
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Update replaces the configuration and persists it.
func (m *Manager) Update(cfg *App) error {
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return m.Save()
}

// ConfigPath returns the path of the loaded config file.
func (m *Manager) ConfigPath() string { return m.configPath }

// SurfacesPath resolves the surface store location. Relative paths are
// taken against the config directory.
func (m *Manager) SurfacesPath() string {
	file := m.Get().SurfacesFile
	if file == "" {
		file = "surfaces.yaml"
	}
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(filepath.Dir(m.configPath), file)
}
