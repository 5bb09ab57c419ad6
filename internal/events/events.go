// Package events defines the normalized import event model and the
// per-provider webhook normalizers that produce it. Everything downstream
// of the webhook layer consumes ImportEvent only; provider payload shapes
// never leak past this package.
package events

import (
	"fmt"
	"time"
)

// Provider identifies the system that emitted a webhook.
type Provider string

const (
	ProviderSonarr    Provider = "sonarr"
	ProviderRadarr    Provider = "radarr"
	ProviderOverseerr Provider = "overseerr"
)

// Kind classifies what an event represents.
type Kind string

const (
	// KindImport is a fresh file import.
	KindImport Kind = "import"
	// KindUpgrade replaces an existing file with a better one.
	KindUpgrade Kind = "upgrade"
	// KindRequest is a media request state change (Overseerr).
	KindRequest Kind = "request"
)

// RequestStatus refines KindRequest events.
type RequestStatus string

const (
	RequestApproved     RequestStatus = "approved"
	RequestAutoApproved RequestStatus = "auto-approved"
	RequestDeclined     RequestStatus = "declined"
	RequestPending      RequestStatus = "pending"
)

// ImportEvent is the normalized form of one provider webhook. Events are
// immutable once created.
type ImportEvent struct {
	Provider Provider
	Kind     Kind

	// MediaID is the provider-local identifier: series ID for Sonarr,
	// movie ID for Radarr, TMDB ID for Overseerr requests.
	MediaID int64

	Title         string
	Year          int
	SeasonEpisode string // "S01E02" for episodes, empty for movies
	FilePath      string
	SizeBytes     int64
	ImportedAt    time.Time
	Tags          []string

	// Notification metadata. Optional, display-only.
	TMDBID        int64
	IMDBID        string
	TVDBID        int64
	MediaType     string // "movie" or "tv"
	Quality       string
	RequestStatus RequestStatus
	RequestedBy   string
	Seasons       string
	FourK         bool
}

// GroupKey returns the aggregation key: events for the same provider and
// media identity coalesce into one notification window.
func (e ImportEvent) GroupKey() string {
	if e.Provider == ProviderOverseerr {
		return string(ProviderOverseerr) + ":requests"
	}
	return fmt.Sprintf("%s:%d", e.Provider, e.MediaID)
}

// DisplayTitle returns the title with season/episode or year suffix.
func (e ImportEvent) DisplayTitle() string {
	if e.SeasonEpisode != "" {
		return fmt.Sprintf("%s %s", e.Title, e.SeasonEpisode)
	}
	if e.Year > 0 {
		return fmt.Sprintf("%s (%d)", e.Title, e.Year)
	}
	return e.Title
}
