package arrs

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golift.io/starr"
	"golift.io/starr/radarr"
	"golift.io/starr/sonarr"

	"github.com/javi11/mediahook/internal/config"
)

func TestUsedBytesFor(t *testing.T) {
	disks := []diskSpace{
		{path: "/", free: 10, total: 100},
		{path: "/data", free: 200, total: 1000},
	}

	used, err := usedBytesFor(disks, "/data/tv")
	require.NoError(t, err)
	assert.Equal(t, int64(800), used)

	// exact mount match
	used, err = usedBytesFor(disks, "/data")
	require.NoError(t, err)
	assert.Equal(t, int64(800), used)

	// falls back to the shorter mount when nothing longer matches
	used, err = usedBytesFor(disks, "/var/log")
	require.NoError(t, err)
	assert.Equal(t, int64(90), used)

	_, err = usedBytesFor(nil, "/data")
	assert.Error(t, err)
}

func TestDiskUsageDecodesDiskSpace(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/diskspace", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"path": "/", "label": "system", "freeSpace": 10, "totalSpace": 100},
			{"path": "/data", "label": "media", "freeSpace": 200, "totalSpace": 1000}
		]`))
	}))
	defer server.Close()

	p := &SonarrProvider{
		root:   config.LibraryRootConfig{Name: "tv", DriveRoute: "/data/tv"},
		client: sonarr.New(&starr.Config{URL: server.URL, APIKey: "key"}),
		log:    slog.Default(),
	}

	used, err := p.DiskUsage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(800), used)
}

func TestDiskUsageUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	p := &RadarrProvider{
		root:   config.LibraryRootConfig{Name: "movies", DriveRoute: "/data/movies"},
		client: radarr.New(&starr.Config{URL: server.URL, APIKey: "key"}),
		log:    slog.Default(),
	}

	_, err := p.DiskUsage(context.Background())
	assert.Error(t, err)
}

func TestBuildProviders(t *testing.T) {
	cfg := &config.Config{
		Roots: []config.LibraryRootConfig{
			{Name: "tv", Provider: "sonarr", Host: "localhost", Port: 8989, APIKey: "k"},
			{Name: "movies", Provider: "Radarr", Host: "localhost", Port: 7878, APIKey: "k"},
		},
	}

	providers, err := BuildProviders(cfg)
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, "tv", providers[0].Name())
	assert.Equal(t, "movies", providers[1].Name())

	cfg.Roots[0].Provider = "plex"
	_, err = BuildProviders(cfg)
	assert.Error(t, err)
}
