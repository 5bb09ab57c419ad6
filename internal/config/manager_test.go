package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Roots = []LibraryRootConfig{
		{
			Name:        "tv",
			Provider:    "sonarr",
			Host:        "localhost",
			Port:        8989,
			APIKey:      "key",
			DriveRoute:  "/data/tv",
			ThresholdGB: 500,
		},
	}
	cfg.QBittorrent = []QbtInstanceConfig{
		{Name: "main", Host: "localhost", Port: 8080, SeedLimit: 43200},
	}
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "no roots",
			mutate:  func(c *Config) { c.Roots = nil },
			wantErr: "at least one library root",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Roots[0].Provider = "plex" },
			wantErr: "provider must be sonarr or radarr",
		},
		{
			name:    "missing api key",
			mutate:  func(c *Config) { c.Roots[0].APIKey = "" },
			wantErr: "api_key is required",
		},
		{
			name:    "zero threshold",
			mutate:  func(c *Config) { c.Roots[0].ThresholdGB = 0 },
			wantErr: "hard_drive_threshold_gb must be positive",
		},
		{
			name: "duplicate root names",
			mutate: func(c *Config) {
				c.Roots = append(c.Roots, c.Roots[0])
			},
			wantErr: "duplicate root name",
		},
		{
			name:    "negative seed limit",
			mutate:  func(c *Config) { c.QBittorrent[0].SeedLimit = -1 },
			wantErr: "seed_limit cannot be negative",
		},
		{
			name:    "bad window",
			mutate:  func(c *Config) { c.General.WindowSeconds = 0 },
			wantErr: "window_seconds must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDryRunDefaultsOn(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want bool
	}{
		{name: "absent", raw: nil, want: true},
		{name: "explicit false", raw: false, want: false},
		{name: "explicit true", raw: true, want: true},
		{name: "string false", raw: "false", want: false},
		{name: "malformed string", raw: "definitely", want: true},
		{name: "number", raw: 7, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := GeneralConfig{DryRun: decodeDryRun(tt.raw)}
			assert.Equal(t, tt.want, g.IsDryRun())
		})
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
roots:
  - name: movies
    provider: radarr
    host: localhost
    port: 7878
    api_key: secret
    hard_drive_route: /data/movies
    hard_drive_threshold_gb: 500
qbittorrent:
  - name: main
    host: localhost
    port: 8080
    username: admin
    password: admin
    seed_limit: 43200
general:
  dry_run: maybe
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Len(t, cfg.Roots, 1)
	assert.Equal(t, "radarr", cfg.Roots[0].Provider)
	assert.Equal(t, int64(500)*1024*1024*1024, cfg.Roots[0].ThresholdBytes())
	assert.Equal(t, "http://localhost:7878", cfg.Roots[0].URL())
	assert.Equal(t, int64(43200), cfg.QBittorrent[0].SeedLimit)

	// malformed dry_run must leave dry-run enabled
	assert.True(t, cfg.General.IsDryRun())

	// defaults survive the merge
	assert.Equal(t, 20, cfg.General.WindowSeconds)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/config.yaml")
	require.Error(t, err)
}

func TestManagerUpdateNotifiesCallbacks(t *testing.T) {
	cfg := validConfig()
	manager := NewManager(cfg, "")

	var gotOld, gotNew *Config
	manager.OnConfigChange(func(oldConfig, newConfig *Config) {
		gotOld = oldConfig
		gotNew = newConfig
	})

	updated := cfg.DeepCopy()
	updated.General.WindowSeconds = 30
	require.NoError(t, manager.UpdateConfig(updated))

	require.NotNil(t, gotOld)
	assert.Equal(t, 20, gotOld.General.WindowSeconds)
	assert.Equal(t, 30, gotNew.General.WindowSeconds)
	assert.Equal(t, 30, manager.GetConfig().General.WindowSeconds)
}

func TestDeepCopyIsolation(t *testing.T) {
	cfg := validConfig()
	dry := false
	cfg.General.DryRun = &dry

	copied := cfg.DeepCopy()
	copied.Roots[0].Name = "changed"
	*copied.General.DryRun = true

	assert.Equal(t, "tv", cfg.Roots[0].Name)
	assert.False(t, *cfg.General.DryRun)
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := validConfig()
	require.NoError(t, SaveToFile(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Roots[0].Name, loaded.Roots[0].Name)
	assert.Equal(t, cfg.QBittorrent[0].SeedLimit, loaded.QBittorrent[0].SeedLimit)
}
