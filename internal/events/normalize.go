package events

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"

	apperrors "github.com/javi11/mediahook/internal/errors"
)

// Parse normalizes a raw webhook body from the given provider.
// It returns ErrEventIgnored for well-formed payloads the engine does not
// act on (test pings, unrelated event types) and ErrParse for anything
// that cannot be decoded.
func Parse(provider Provider, body []byte) (*ImportEvent, error) {
	switch provider {
	case ProviderSonarr:
		return parseSonarr(body)
	case ProviderRadarr:
		return parseRadarr(body)
	case ProviderOverseerr:
		return parseOverseerr(body)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", apperrors.ErrParse, provider)
	}
}

type sonarrPayload struct {
	EventType string `json:"eventType"`
	IsUpgrade bool   `json:"isUpgrade"`
	Series    struct {
		ID     int64  `json:"id"`
		Title  string `json:"title"`
		Year   int    `json:"year"`
		Path   string `json:"path"`
		TvdbID int64  `json:"tvdbId"`
		ImdbID string `json:"imdbId"`
	} `json:"series"`
	Episodes []struct {
		SeasonNumber  int `json:"seasonNumber"`
		EpisodeNumber int `json:"episodeNumber"`
	} `json:"episodes"`
	EpisodeFile struct {
		ID        int64  `json:"id"`
		Path      string `json:"path"`
		Size      int64  `json:"size"`
		DateAdded string `json:"dateAdded"`
		Quality   string `json:"quality"`
	} `json:"episodeFile"`
}

func parseSonarr(body []byte) (*ImportEvent, error) {
	var p sonarrPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: sonarr: %v", apperrors.ErrParse, err)
	}

	switch p.EventType {
	case "Download":
	case "Test":
		return nil, fmt.Errorf("%w: sonarr test ping", apperrors.ErrEventIgnored)
	default:
		return nil, fmt.Errorf("%w: sonarr event type %q", apperrors.ErrEventIgnored, p.EventType)
	}

	if p.Series.ID == 0 || p.Series.Title == "" {
		return nil, fmt.Errorf("%w: sonarr download without series", apperrors.ErrParse)
	}

	kind := KindImport
	if p.IsUpgrade {
		kind = KindUpgrade
	}

	ev := &ImportEvent{
		Provider:   ProviderSonarr,
		Kind:       kind,
		MediaID:    p.Series.ID,
		Title:      p.Series.Title,
		Year:       p.Series.Year,
		FilePath:   p.EpisodeFile.Path,
		SizeBytes:  p.EpisodeFile.Size,
		ImportedAt: parseTime(p.EpisodeFile.DateAdded),
		TVDBID:     p.Series.TvdbID,
		IMDBID:     p.Series.ImdbID,
		MediaType:  "tv",
		Quality:    p.EpisodeFile.Quality,
	}
	if len(p.Episodes) > 0 {
		ev.SeasonEpisode = fmt.Sprintf("S%02dE%02d",
			p.Episodes[0].SeasonNumber, p.Episodes[0].EpisodeNumber)
	}
	return ev, nil
}

type radarrPayload struct {
	EventType string `json:"eventType"`
	IsUpgrade bool   `json:"isUpgrade"`
	Movie     struct {
		ID         int64  `json:"id"`
		Title      string `json:"title"`
		Year       int    `json:"year"`
		FolderPath string `json:"folderPath"`
		TmdbID     int64  `json:"tmdbId"`
		ImdbID     string `json:"imdbId"`
	} `json:"movie"`
	MovieFile struct {
		ID        int64  `json:"id"`
		Path      string `json:"path"`
		Size      int64  `json:"size"`
		DateAdded string `json:"dateAdded"`
		Quality   string `json:"quality"`
	} `json:"movieFile"`
}

func parseRadarr(body []byte) (*ImportEvent, error) {
	var p radarrPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: radarr: %v", apperrors.ErrParse, err)
	}

	switch p.EventType {
	case "Download":
	case "Test":
		return nil, fmt.Errorf("%w: radarr test ping", apperrors.ErrEventIgnored)
	default:
		return nil, fmt.Errorf("%w: radarr event type %q", apperrors.ErrEventIgnored, p.EventType)
	}

	if p.Movie.ID == 0 || p.Movie.Title == "" {
		return nil, fmt.Errorf("%w: radarr download without movie", apperrors.ErrParse)
	}

	kind := KindImport
	if p.IsUpgrade {
		kind = KindUpgrade
	}

	return &ImportEvent{
		Provider:   ProviderRadarr,
		Kind:       kind,
		MediaID:    p.Movie.ID,
		Title:      p.Movie.Title,
		Year:       p.Movie.Year,
		FilePath:   p.MovieFile.Path,
		SizeBytes:  p.MovieFile.Size,
		ImportedAt: parseTime(p.MovieFile.DateAdded),
		TMDBID:     p.Movie.TmdbID,
		IMDBID:     p.Movie.ImdbID,
		MediaType:  "movie",
		Quality:    p.MovieFile.Quality,
	}, nil
}

type overseerrPayload struct {
	NotificationType string `json:"notification_type"`
	Subject          string `json:"subject"`
	Image            string `json:"image"`
	Media            struct {
		MediaType string          `json:"media_type"`
		TmdbID    json.RawMessage `json:"tmdbId"`
		Status4K  string          `json:"status4k"`
	} `json:"media"`
	Request struct {
		RequestedByUsername string `json:"requestedBy_username"`
	} `json:"request"`
	Extra []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"extra"`
}

func parseOverseerr(body []byte) (*ImportEvent, error) {
	var p overseerrPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: overseerr: %v", apperrors.ErrParse, err)
	}

	var status RequestStatus
	switch p.NotificationType {
	case "MEDIA_APPROVED":
		status = RequestApproved
	case "MEDIA_AUTO_APPROVED":
		status = RequestAutoApproved
	case "MEDIA_DECLINED":
		status = RequestDeclined
	case "MEDIA_PENDING":
		status = RequestPending
	case "TEST_NOTIFICATION":
		return nil, fmt.Errorf("%w: overseerr test ping", apperrors.ErrEventIgnored)
	default:
		return nil, fmt.Errorf("%w: overseerr notification %q", apperrors.ErrEventIgnored, p.NotificationType)
	}

	if p.Subject == "" {
		return nil, fmt.Errorf("%w: overseerr request without subject", apperrors.ErrParse)
	}

	ev := &ImportEvent{
		Provider:      ProviderOverseerr,
		Kind:          KindRequest,
		MediaID:       rawID(p.Media.TmdbID),
		Title:         stripYearSuffix(p.Subject),
		Year:          yearSuffix(p.Subject),
		ImportedAt:    time.Now(),
		TMDBID:        rawID(p.Media.TmdbID),
		MediaType:     p.Media.MediaType,
		RequestStatus: status,
		RequestedBy:   p.Request.RequestedByUsername,
		FourK:         p.Media.Status4K == "PENDING",
	}
	for _, extra := range p.Extra {
		if extra.Name == "Requested Seasons" {
			ev.Seasons = extra.Value
		}
	}
	return ev, nil
}

// rawID tolerates tmdbId arriving as either a number or a string.
func rawID(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

var yearSuffixRe = regexp.MustCompile(`^(.*?)\s*\((\d{4})\)$`)

func stripYearSuffix(subject string) string {
	if m := yearSuffixRe.FindStringSubmatch(subject); m != nil {
		return m[1]
	}
	return subject
}

func yearSuffix(subject string) int {
	if m := yearSuffixRe.FindStringSubmatch(subject); m != nil {
		y, _ := strconv.Atoi(m[2])
		return y
	}
	return 0
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Now()
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Now()
}
