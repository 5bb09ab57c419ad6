// Package library maintains the engine's view of what media currently
// exists under each library root. The view is never cached across runs:
// every planning pass refreshes it wholesale from the provider so the
// engine cannot act on stale state.
package library

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/javi11/mediahook/internal/errors"
)

// NoDeleteTag marks items that must never be planned for eviction.
const NoDeleteTag = "no_delete"

// MediaItem is one evictable unit: an episode file for Sonarr roots, a
// movie for Radarr roots.
type MediaItem struct {
	ID        int64
	Title     string
	FilePath  string
	SizeBytes int64
	AddedAt   time.Time
	Tags      []string

	// ParentID is the series ID for episode files, zero for movies.
	ParentID int64

	// Display metadata for notifications.
	TMDBID int64
	IMDBID string
	TVDBID int64
}

// ProtectedBy reports whether the item is exempt from eviction. The
// built-in no_delete tag always protects; extraTag names a per-root
// tag that protects as well, empty means none.
func (m MediaItem) ProtectedBy(extraTag string) bool {
	for _, tag := range m.Tags {
		if strings.EqualFold(tag, NoDeleteTag) {
			return true
		}
		if extraTag != "" && strings.EqualFold(tag, extraTag) {
			return true
		}
	}
	return false
}

// Provider is the media manager backing one library root.
type Provider interface {
	// Name returns the root name this provider serves.
	Name() string

	// ListItems returns every evictable item under the root.
	ListItems(ctx context.Context) ([]MediaItem, error)

	// DiskUsage returns used bytes on the drive backing the root.
	DiskUsage(ctx context.Context) (int64, error)

	// DeleteItem removes the item and its file from the library.
	DeleteItem(ctx context.Context, item MediaItem) error

	// GrabbedHashes returns download hashes recorded in the item's recent
	// grab history.
	GrabbedHashes(ctx context.Context, item MediaItem) ([]string, error)

	// ImportSourceTitles returns the release names the item's files were
	// imported from.
	ImportSourceTitles(ctx context.Context, item MediaItem) ([]string, error)
}

const providerTimeout = 30 * time.Second

// Index gives the engine a uniform view over all configured roots.
type Index struct {
	providers map[string]Provider
	log       *slog.Logger
}

// NewIndex creates an index over the given providers, keyed by root name.
func NewIndex(providers []Provider) *Index {
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Index{
		providers: byName,
		log:       slog.Default().With("component", "library"),
	}
}

// Provider returns the provider for the named root.
func (idx *Index) Provider(root string) (Provider, error) {
	p, ok := idx.providers[root]
	if !ok {
		return nil, fmt.Errorf("unknown library root %q", root)
	}
	return p, nil
}

// RootNames returns the configured root names.
func (idx *Index) RootNames() []string {
	names := make([]string, 0, len(idx.providers))
	for name := range idx.providers {
		names = append(names, name)
	}
	return names
}

// Refresh lists the current items under a root. Failures and timeouts map
// to ErrProviderUnavailable so the caller skips eviction for the cycle.
func (idx *Index) Refresh(ctx context.Context, root string) ([]MediaItem, error) {
	p, err := idx.Provider(root)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()

	items, err := p.ListItems(ctx)
	if err != nil {
		idx.log.WarnContext(ctx, "library refresh failed", "root", root, "err", err)
		return nil, fmt.Errorf("%w: refresh %s: %v", apperrors.ErrProviderUnavailable, root, err)
	}
	return items, nil
}

// DiskUsage returns used bytes on the drive backing a root.
func (idx *Index) DiskUsage(ctx context.Context, root string) (int64, error) {
	p, err := idx.Provider(root)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()

	used, err := p.DiskUsage(ctx)
	if err != nil {
		idx.log.WarnContext(ctx, "disk usage query failed", "root", root, "err", err)
		return 0, fmt.Errorf("%w: disk usage %s: %v", apperrors.ErrProviderUnavailable, root, err)
	}
	return used, nil
}

// Delete removes an item through its root's provider.
func (idx *Index) Delete(ctx context.Context, root string, item MediaItem) error {
	p, err := idx.Provider(root)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()

	return p.DeleteItem(ctx, item)
}
