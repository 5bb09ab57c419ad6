package arrs

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"golift.io/starr"
	"golift.io/starr/radarr"

	"github.com/javi11/mediahook/internal/config"
	"github.com/javi11/mediahook/internal/library"
)

const defaultRadarrHistoryCap = 20

// RadarrProvider serves one Radarr-managed library root. Evictable items
// are movies.
type RadarrProvider struct {
	root   config.LibraryRootConfig
	client *radarr.Radarr
	log    *slog.Logger
}

// NewRadarrProvider creates a provider for the given root.
func NewRadarrProvider(root config.LibraryRootConfig) *RadarrProvider {
	client := radarr.New(&starr.Config{URL: root.URL(), APIKey: root.APIKey})
	return &RadarrProvider{
		root:   root,
		client: client,
		log:    slog.Default().With("component", "radarr", "root", root.Name),
	}
}

func (p *RadarrProvider) Name() string {
	return p.root.Name
}

// ListItems returns every downloaded movie known to Radarr.
func (p *RadarrProvider) ListItems(ctx context.Context) ([]library.MediaItem, error) {
	tagLabels, err := p.tagLabels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get tags: %w", err)
	}

	movies, err := p.client.GetMovieContext(ctx, &radarr.GetMovie{})
	if err != nil {
		return nil, fmt.Errorf("failed to get movies: %w", err)
	}

	var items []library.MediaItem
	for _, movie := range movies {
		if !movie.HasFile || movie.MovieFile == nil {
			continue
		}

		tags := make([]string, 0, len(movie.Tags))
		for _, tagID := range movie.Tags {
			if label, ok := tagLabels[tagID]; ok {
				tags = append(tags, label)
			}
		}

		items = append(items, library.MediaItem{
			ID:        movie.ID,
			Title:     fmt.Sprintf("%s (%d)", movie.Title, movie.Year),
			FilePath:  movie.MovieFile.Path,
			SizeBytes: movie.SizeOnDisk,
			AddedAt:   movie.MovieFile.DateAdded,
			Tags:      tags,
			TMDBID:    movie.TmdbID,
			IMDBID:    movie.ImdbID,
		})
	}

	p.log.DebugContext(ctx, "listed movies", "count", len(items))
	return items, nil
}

// DiskUsage reports used bytes on the drive hosting the root path.
func (p *RadarrProvider) DiskUsage(ctx context.Context) (int64, error) {
	disks, err := fetchDiskSpace(ctx, p.client, radarr.APIver+"/diskspace")
	if err != nil {
		return 0, err
	}
	return usedBytesFor(disks, p.root.DriveRoute)
}

func (p *RadarrProvider) tagLabels(ctx context.Context) (map[int]string, error) {
	tags, err := p.client.GetTagsContext(ctx)
	if err != nil {
		return nil, err
	}
	labels := make(map[int]string, len(tags))
	for _, tag := range tags {
		labels[tag.ID] = tag.Label
	}
	return labels, nil
}

// DeleteItem removes the movie and its files from Radarr. The library
// entry goes too so Radarr does not immediately re-grab it.
func (p *RadarrProvider) DeleteItem(ctx context.Context, item library.MediaItem) error {
	if err := p.client.DeleteMovieContext(ctx, item.ID, true, false); err != nil {
		return fmt.Errorf("failed to delete movie %d: %w", item.ID, err)
	}
	p.log.InfoContext(ctx, "deleted movie", "movie_id", item.ID, "title", item.Title)
	return nil
}

// GrabbedHashes returns download IDs from the movie's grab history.
func (p *RadarrProvider) GrabbedHashes(ctx context.Context, item library.MediaItem) ([]string, error) {
	records, ok, err := p.history(ctx, item.ID)
	if err != nil || !ok {
		return nil, err
	}

	var hashes []string
	for _, record := range records {
		if record.EventType == "grabbed" && record.DownloadID != "" {
			hashes = append(hashes, record.DownloadID)
		}
	}
	return hashes, nil
}

// ImportSourceTitles returns release names the movie file was imported
// from.
func (p *RadarrProvider) ImportSourceTitles(ctx context.Context, item library.MediaItem) ([]string, error) {
	records, ok, err := p.history(ctx, item.ID)
	if err != nil || !ok {
		return nil, err
	}

	var titles []string
	for _, record := range records {
		if record.EventType == "downloadFolderImported" && record.SourceTitle != "" {
			titles = append(titles, record.SourceTitle)
		}
	}
	return titles, nil
}

func (p *RadarrProvider) history(ctx context.Context, movieID int64) ([]*radarr.HistoryRecord, bool, error) {
	limit := p.root.HistoryRecordCap
	if limit <= 0 {
		limit = defaultRadarrHistoryCap
	}

	req := &starr.PageReq{
		PageSize: 100,
		SortKey:  "date",
		SortDir:  starr.SortDescend,
	}
	req.Set("movieId", strconv.FormatInt(movieID, 10))

	history, err := p.client.GetHistoryPageContext(ctx, req)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get history for movie %d: %w", movieID, err)
	}

	if history.TotalRecords > limit {
		p.log.WarnContext(ctx, "history too large, skipping torrent lookup",
			"movie_id", movieID,
			"records", history.TotalRecords,
			"cap", limit)
		return nil, false, nil
	}

	return history.Records, true, nil
}
