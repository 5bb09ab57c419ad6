package arrs

import (
	"context"
	"fmt"
	"strings"

	"golift.io/starr"

	"github.com/javi11/mediahook/internal/config"
	"github.com/javi11/mediahook/internal/library"
)

// diskSpace is the provider-neutral view of one drive report.
type diskSpace struct {
	path  string
	free  int64
	total int64
}

// diskSpaceRecord matches the /api/v3/diskspace payload, which is the
// same shape in Sonarr and Radarr.
type diskSpaceRecord struct {
	Path       string `json:"path"`
	Label      string `json:"label"`
	FreeSpace  int64  `json:"freeSpace"`
	TotalSpace int64  `json:"totalSpace"`
}

// fetchDiskSpace queries the diskspace endpoint. Neither starr sub-package
// wraps it, so go through the generic API client both apps embed.
func fetchDiskSpace(ctx context.Context, api starr.APIer, uri string) ([]diskSpace, error) {
	var records []diskSpaceRecord
	if err := api.GetInto(ctx, starr.Request{URI: uri}, &records); err != nil {
		return nil, fmt.Errorf("failed to get disk space: %w", err)
	}

	entries := make([]diskSpace, 0, len(records))
	for _, r := range records {
		entries = append(entries, diskSpace{path: r.Path, free: r.FreeSpace, total: r.TotalSpace})
	}
	return entries, nil
}

// usedBytesFor finds the drive entry covering the configured route and
// returns its used bytes. The longest matching mount wins so /data/tv
// resolves to /data when both / and /data are reported.
func usedBytesFor(disks []diskSpace, route string) (int64, error) {
	var best *diskSpace
	for i := range disks {
		d := disks[i]
		if d.path == route || strings.HasPrefix(route, strings.TrimSuffix(d.path, "/")+"/") {
			if best == nil || len(d.path) > len(best.path) {
				best = &disks[i]
			}
		}
	}
	if best == nil {
		return 0, fmt.Errorf("no drive found for route %q", route)
	}
	return best.total - best.free, nil
}

// BuildProviders creates one library provider per configured root.
func BuildProviders(cfg *config.Config) ([]library.Provider, error) {
	providers := make([]library.Provider, 0, len(cfg.Roots))
	for _, root := range cfg.Roots {
		switch strings.ToLower(root.Provider) {
		case "sonarr":
			providers = append(providers, NewSonarrProvider(root))
		case "radarr":
			providers = append(providers, NewRadarrProvider(root))
		default:
			return nil, fmt.Errorf("unsupported provider %q for root %q", root.Provider, root.Name)
		}
	}
	return providers, nil
}
