// Package arrs implements library providers backed by the Sonarr and
// Radarr HTTP APIs.
package arrs

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"golift.io/starr"
	"golift.io/starr/sonarr"

	"github.com/javi11/mediahook/internal/config"
	"github.com/javi11/mediahook/internal/library"
)

const defaultSonarrHistoryCap = 10

// SonarrProvider serves one Sonarr-managed library root. Evictable items
// are episode files.
type SonarrProvider struct {
	root   config.LibraryRootConfig
	client *sonarr.Sonarr
	log    *slog.Logger
}

// NewSonarrProvider creates a provider for the given root.
func NewSonarrProvider(root config.LibraryRootConfig) *SonarrProvider {
	client := sonarr.New(&starr.Config{URL: root.URL(), APIKey: root.APIKey})
	return &SonarrProvider{
		root:   root,
		client: client,
		log:    slog.Default().With("component", "sonarr", "root", root.Name),
	}
}

func (p *SonarrProvider) Name() string {
	return p.root.Name
}

// ListItems returns every episode file known to Sonarr, one MediaItem per
// file. Series tagged no_delete propagate the tag to all their files.
func (p *SonarrProvider) ListItems(ctx context.Context) ([]library.MediaItem, error) {
	tagLabels, err := p.tagLabels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get tags: %w", err)
	}

	series, err := p.client.GetAllSeriesContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get series: %w", err)
	}

	var items []library.MediaItem
	for _, show := range series {
		showTags := make([]string, 0, len(show.Tags))
		for _, tagID := range show.Tags {
			if label, ok := tagLabels[tagID]; ok {
				showTags = append(showTags, label)
			}
		}

		episodes, err := p.client.GetSeriesEpisodesContext(ctx, &sonarr.GetEpisode{
			SeriesID: show.ID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get episodes for series %d: %w", show.ID, err)
		}

		// map file ID to its SxxEyy label
		episodeByFile := make(map[int64]string, len(episodes))
		for _, ep := range episodes {
			if ep.EpisodeFileID != 0 {
				episodeByFile[ep.EpisodeFileID] = fmt.Sprintf("S%02dE%02d", ep.SeasonNumber, ep.EpisodeNumber)
			}
		}

		files, err := p.client.GetSeriesEpisodeFilesContext(ctx, show.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get episode files for series %d: %w", show.ID, err)
		}

		for _, file := range files {
			title := show.Title
			if label, ok := episodeByFile[file.ID]; ok {
				title = fmt.Sprintf("%s %s", show.Title, label)
			}
			items = append(items, library.MediaItem{
				ID:        file.ID,
				ParentID:  show.ID,
				Title:     title,
				FilePath:  file.Path,
				SizeBytes: file.Size,
				AddedAt:   file.DateAdded,
				Tags:      showTags,
				TVDBID:    show.TvdbID,
				IMDBID:    show.ImdbID,
			})
		}
	}

	p.log.DebugContext(ctx, "listed episode files", "count", len(items))
	return items, nil
}

// DiskUsage reports used bytes on the drive hosting the root path.
func (p *SonarrProvider) DiskUsage(ctx context.Context) (int64, error) {
	disks, err := fetchDiskSpace(ctx, p.client, sonarr.APIver+"/diskspace")
	if err != nil {
		return 0, err
	}
	return usedBytesFor(disks, p.root.DriveRoute)
}

func (p *SonarrProvider) tagLabels(ctx context.Context) (map[int]string, error) {
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

// DeleteItem removes an episode file (and the file on disk) from Sonarr.
func (p *SonarrProvider) DeleteItem(ctx context.Context, item library.MediaItem) error {
	if err := p.client.DeleteEpisodeFileContext(ctx, item.ID); err != nil {
		return fmt.Errorf("failed to delete episode file %d: %w", item.ID, err)
	}
	p.log.InfoContext(ctx, "deleted episode file", "file_id", item.ID, "title", item.Title)
	return nil
}

// GrabbedHashes returns download IDs from the series' grab history.
func (p *SonarrProvider) GrabbedHashes(ctx context.Context, item library.MediaItem) ([]string, error) {
	records, ok, err := p.history(ctx, item.ParentID)
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

// ImportSourceTitles returns release names the series' files were imported
// from.
func (p *SonarrProvider) ImportSourceTitles(ctx context.Context, item library.MediaItem) ([]string, error) {
	records, ok, err := p.history(ctx, item.ParentID)
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

// history pages the series history. Oversized histories are skipped rather
// than partially trusted: a series with more records than the cap has
// churned too much for the grab trail to identify a single torrent.
func (p *SonarrProvider) history(ctx context.Context, seriesID int64) ([]*sonarr.HistoryRecord, bool, error) {
	limit := p.root.HistoryRecordCap
	if limit <= 0 {
		limit = defaultSonarrHistoryCap
	}

	req := &starr.PageReq{
		PageSize: 100,
		SortKey:  "date",
		SortDir:  starr.SortDescend,
	}
	req.Set("seriesId", strconv.FormatInt(seriesID, 10))

	history, err := p.client.GetHistoryPageContext(ctx, req)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get history for series %d: %w", seriesID, err)
	}

	if history.TotalRecords > limit {
		p.log.WarnContext(ctx, "history too large, skipping torrent lookup",
			"series_id", seriesID,
			"records", history.TotalRecords,
			"cap", limit)
		return nil, false, nil
	}

	return history.Records, true, nil
}
