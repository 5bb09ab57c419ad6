// Package config provides configuration loading, validation and thread-safe
// access for the retention engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Roots       []LibraryRootConfig `yaml:"roots" mapstructure:"roots"`
	QBittorrent []QbtInstanceConfig `yaml:"qbittorrent" mapstructure:"qbittorrent"`
	Telegram    TelegramConfig      `yaml:"telegram" mapstructure:"telegram"`
	TMDB        TMDBConfig          `yaml:"tmdb" mapstructure:"tmdb"`
	General     GeneralConfig       `yaml:"general" mapstructure:"general"`
	API         APIConfig           `yaml:"api" mapstructure:"api"`
	Log         LogConfig           `yaml:"log" mapstructure:"log"`
}

// LibraryRootConfig describes one media library root: the provider that
// manages it (sonarr or radarr), how to reach it, and the disk budget that
// triggers eviction.
type LibraryRootConfig struct {
	Name             string `yaml:"name" mapstructure:"name"`
	Provider         string `yaml:"provider" mapstructure:"provider"` // "sonarr" or "radarr"
	Host             string `yaml:"host" mapstructure:"host"`
	Port             int    `yaml:"port" mapstructure:"port"`
	APIKey           string `yaml:"api_key" mapstructure:"api_key"`
	DriveRoute       string `yaml:"hard_drive_route" mapstructure:"hard_drive_route"`
	ThresholdGB      int64  `yaml:"hard_drive_threshold_gb" mapstructure:"hard_drive_threshold_gb"`
	// NoDeleteTag optionally names an extra provider tag that protects
	// items from eviction. The built-in no_delete tag always protects.
	NoDeleteTag      string `yaml:"no_delete_tag" mapstructure:"no_delete_tag"`
	HistoryRecordCap int    `yaml:"history_record_cap" mapstructure:"history_record_cap"`
}

// URL returns the provider base URL for this root.
func (r LibraryRootConfig) URL() string {
	return fmt.Sprintf("http://%s:%d", r.Host, r.Port)
}

// ThresholdBytes converts the configured budget to bytes.
func (r LibraryRootConfig) ThresholdBytes() int64 {
	return r.ThresholdGB * 1024 * 1024 * 1024
}

// QbtInstanceConfig describes one qBittorrent instance and its seeding
// policy. SeedLimit is expressed in minutes of accumulated seeding time.
type QbtInstanceConfig struct {
	Name      string `yaml:"name" mapstructure:"name"`
	Host      string `yaml:"host" mapstructure:"host"`
	Port      int    `yaml:"port" mapstructure:"port"`
	Username  string `yaml:"username" mapstructure:"username"`
	Password  string `yaml:"password" mapstructure:"password"`
	SeedLimit int64  `yaml:"seed_limit" mapstructure:"seed_limit"`
}

// URL returns the WebUI base URL for this instance.
func (q QbtInstanceConfig) URL() string {
	return fmt.Sprintf("http://%s:%d", q.Host, q.Port)
}

// TelegramConfig holds bot credentials and destination chats. ChatID
// receives grouped import summaries; PrivateChatID receives torrent
// reconciliation reports. Either may be empty to disable that stream.
type TelegramConfig struct {
	Token         string `yaml:"token" mapstructure:"token"`
	ChatID        string `yaml:"chat_id" mapstructure:"chat_id"`
	PrivateChatID string `yaml:"private_chat_id" mapstructure:"private_chat_id"`
}

// Enabled reports whether the summary stream is configured.
func (t TelegramConfig) Enabled() bool {
	return t.Token != "" && t.ChatID != ""
}

// TMDBConfig configures localized display titles. Optional; an empty API
// key disables localization and original titles are used as-is.
type TMDBConfig struct {
	APIKey   string `yaml:"api_key" mapstructure:"api_key"`
	Language string `yaml:"language" mapstructure:"language"`
}

// GeneralConfig holds engine-wide switches. DryRun is deliberately lenient:
// absent or malformed values mean dry-run stays ON, so a broken config can
// never enable destructive behavior. See decodeDryRun.
type GeneralConfig struct {
	DryRun        *bool  `yaml:"dry_run" mapstructure:"-"`
	WindowSeconds int    `yaml:"window_seconds" mapstructure:"window_seconds"`
	SweepSchedule string `yaml:"sweep_schedule" mapstructure:"sweep_schedule"`
}

// IsDryRun reports the effective dry-run state (default true).
func (g GeneralConfig) IsDryRun() bool {
	if g.DryRun == nil {
		return true
	}
	return *g.DryRun
}

// APIConfig holds the inbound webhook listener settings
type APIConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
}

// ListenAddr returns the host:port the HTTP server binds.
func (a APIConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// LogConfig represents logging configuration with rotation support
type LogConfig struct {
	File       string `yaml:"file" mapstructure:"file"`
	Level      string `yaml:"level" mapstructure:"level"`
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"`
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// DeepCopy creates a deep copy of the configuration
func (c *Config) DeepCopy() *Config {
	if c == nil {
		return nil
	}

	copied := *c

	copied.Roots = make([]LibraryRootConfig, len(c.Roots))
	copy(copied.Roots, c.Roots)

	copied.QBittorrent = make([]QbtInstanceConfig, len(c.QBittorrent))
	copy(copied.QBittorrent, c.QBittorrent)

	if c.General.DryRun != nil {
		v := *c.General.DryRun
		copied.General.DryRun = &v
	}

	return &copied
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if len(c.Roots) == 0 {
		return fmt.Errorf("at least one library root must be configured")
	}

	seen := make(map[string]bool, len(c.Roots))
	for i, root := range c.Roots {
		if root.Name == "" {
			return fmt.Errorf("roots[%d]: name is required", i)
		}
		if seen[root.Name] {
			return fmt.Errorf("roots[%d]: duplicate root name %q", i, root.Name)
		}
		seen[root.Name] = true

		switch strings.ToLower(root.Provider) {
		case "sonarr", "radarr":
		default:
			return fmt.Errorf("roots[%d]: provider must be sonarr or radarr, got %q", i, root.Provider)
		}
		if root.Host == "" {
			return fmt.Errorf("roots[%d]: host is required", i)
		}
		if root.Port <= 0 || root.Port > 65535 {
			return fmt.Errorf("roots[%d]: invalid port %d", i, root.Port)
		}
		if root.APIKey == "" {
			return fmt.Errorf("roots[%d]: api_key is required", i)
		}
		if root.ThresholdGB <= 0 {
			return fmt.Errorf("roots[%d]: hard_drive_threshold_gb must be positive", i)
		}
	}

	for i, inst := range c.QBittorrent {
		if inst.Name == "" {
			return fmt.Errorf("qbittorrent[%d]: name is required", i)
		}
		if inst.Host == "" {
			return fmt.Errorf("qbittorrent[%d]: host is required", i)
		}
		if inst.Port <= 0 || inst.Port > 65535 {
			return fmt.Errorf("qbittorrent[%d]: invalid port %d", i, inst.Port)
		}
		if inst.SeedLimit < 0 {
			return fmt.Errorf("qbittorrent[%d]: seed_limit cannot be negative", i)
		}
	}

	if c.General.WindowSeconds <= 0 {
		return fmt.Errorf("general.window_seconds must be positive")
	}

	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port must be a valid port, got %d", c.API.Port)
	}

	return nil
}

// RootByName returns the library root with the given name.
func (c *Config) RootByName(name string) (LibraryRootConfig, bool) {
	for _, root := range c.Roots {
		if root.Name == name {
			return root, true
		}
	}
	return LibraryRootConfig{}, false
}

// RootsForProvider returns every root managed by the given provider type.
func (c *Config) RootsForProvider(provider string) []LibraryRootConfig {
	var out []LibraryRootConfig
	for _, root := range c.Roots {
		if strings.EqualFold(root.Provider, provider) {
			out = append(out, root)
		}
	}
	return out
}

// ChangeCallback represents a function called when configuration changes
type ChangeCallback func(oldConfig, newConfig *Config)

// ConfigGetter represents a function that returns the current configuration
type ConfigGetter func() *Config

// Manager manages configuration state and persistence
type Manager struct {
	current    *Config
	configFile string
	mutex      sync.RWMutex
	callbacks  []ChangeCallback
}

// NewManager creates a new configuration manager
func NewManager(config *Config, configFile string) *Manager {
	return &Manager{
		current:    config,
		configFile: configFile,
	}
}

// GetConfig returns the current configuration (thread-safe)
func (m *Manager) GetConfig() *Config {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.current
}

// GetConfigGetter returns a function that provides the current configuration
func (m *Manager) GetConfigGetter() ConfigGetter {
	return m.GetConfig
}

// UpdateConfig updates the current configuration (thread-safe)
func (m *Manager) UpdateConfig(config *Config) error {
	m.mutex.Lock()
	// Take a deep copy of the old config so callbacks get an immutable snapshot
	var oldConfig *Config
	if m.current != nil {
		oldConfig = m.current.DeepCopy()
	}
	m.current = config
	callbacks := make([]ChangeCallback, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mutex.Unlock()

	// Notify callbacks after releasing the lock
	for _, callback := range callbacks {
		callback(oldConfig, config)
	}
	return nil
}

// OnConfigChange registers a callback to be called when configuration changes
func (m *Manager) OnConfigChange(callback ChangeCallback) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// ReloadConfig reloads configuration from file
func (m *Manager) ReloadConfig() error {
	m.mutex.RLock()
	configFile := m.configFile
	m.mutex.RUnlock()

	config, err := LoadConfig(configFile)
	if err != nil {
		return err
	}

	return m.UpdateConfig(config)
}

// SaveConfig saves the current configuration to file
func (m *Manager) SaveConfig() error {
	m.mutex.RLock()
	config := m.current
	m.mutex.RUnlock()

	if config == nil {
		return fmt.Errorf("no configuration to save")
	}

	return SaveToFile(config, m.configFile)
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Roots:       []LibraryRootConfig{},
		QBittorrent: []QbtInstanceConfig{},
		TMDB: TMDBConfig{
			Language: "en-US",
		},
		General: GeneralConfig{
			DryRun:        nil, // nil means dry-run stays on
			WindowSeconds: 20,
			SweepSchedule: "", // empty disables the periodic sweep
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8482,
		},
		Log: LogConfig{
			File:       "", // Empty = console only
			Level:      "info",
			MaxSize:    100, // 100MB max size
			MaxAge:     30,  // Keep for 30 days
			MaxBackups: 10,  // Keep 10 old files
			Compress:   true,
		},
	}
}

// SaveToFile saves a configuration to a YAML file
func SaveToFile(config *Config, filename string) error {
	if filename == "" {
		return fmt.Errorf("no config file path provided")
	}

	// Ensure the directory exists
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadConfig loads configuration from file and merges with defaults
func LoadConfig(configFile string) (*Config, error) {
	config := DefaultConfig()

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		// Look for config file in common locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Read the configuration file
	if err := v.ReadInConfig(); err != nil {
		if configFile != "" {
			// If a specific config file was provided but couldn't be read, return error
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		// No config file found - return helpful error
		return nil, fmt.Errorf("no configuration file found. Please create config.yaml or use --config flag")
	}

	// Unmarshal the config
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// dry_run is decoded separately: any value that is not clearly boolean
	// keeps dry-run enabled rather than failing the whole load
	config.General.DryRun = decodeDryRun(v.Get("general.dry_run"))

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// decodeDryRun interprets the raw dry_run value leniently. Only an
// unambiguous boolean disables dry-run; anything else returns nil, which
// IsDryRun treats as true.
func decodeDryRun(raw any) *bool {
	switch v := raw.(type) {
	case bool:
		return &v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return &b
		}
	}
	return nil
}
