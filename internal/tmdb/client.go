// Package tmdb resolves localized display titles from TMDB. Resolution is
// strictly display-only: any failure falls back to the original title and
// never affects engine decisions.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/javi11/mediahook/internal/httpclient"
)

const defaultBaseURL = "https://api.themoviedb.org"
const defaultCacheTTL = 24 * time.Hour

// ErrNotFound is returned when the media doesn't exist in TMDB.
var ErrNotFound = errors.New("media not found")

// Client is a TMDB API client.
type Client struct {
	apiKey     string
	language   string
	baseURL    string
	httpClient *http.Client
	cache      *cache
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithCacheTTL sets the cache TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = newCache(ttl)
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new TMDB client. Language is a TMDB locale such as
// "es-ES".
func NewClient(apiKey, language string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		language:   language,
		baseURL:    defaultBaseURL,
		httpClient: httpclient.New(httpclient.WithTimeout(10 * time.Second)),
		cache:      newCache(defaultCacheTTL),
		log:        slog.Default().With("component", "tmdb"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type titleResponse struct {
	Title string `json:"title"` // movies
	Name  string `json:"name"`  // tv
}

// LocalizedTitle returns the localized title for a movie or tv entry,
// falling back to the given original on any failure. mediaType is
// "movie" or "tv".
func (c *Client) LocalizedTitle(ctx context.Context, mediaType string, tmdbID int64, original string) string {
	if c.apiKey == "" || tmdbID == 0 {
		return original
	}

	cacheKey := fmt.Sprintf("%s/%d", mediaType, tmdbID)
	if title, ok := c.cache.get(cacheKey); ok {
		return title
	}

	title, err := c.fetchTitle(ctx, mediaType, tmdbID)
	if err != nil {
		c.log.DebugContext(ctx, "localized title lookup failed, using original",
			"media_type", mediaType, "tmdb_id", tmdbID, "err", err)
		return original
	}

	c.cache.set(cacheKey, title)
	return title
}

func (c *Client) fetchTitle(ctx context.Context, mediaType string, tmdbID int64) (string, error) {
	url := fmt.Sprintf("%s/3/%s/%d?api_key=%s&language=%s",
		c.baseURL, mediaType, tmdbID, c.apiKey, c.language)

	return retry.DoWithData(
		func() (string, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return "", fmt.Errorf("create request: %w", err)
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return "", fmt.Errorf("execute request: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusNotFound {
				return "", retry.Unrecoverable(ErrNotFound)
			}
			if resp.StatusCode != http.StatusOK {
				return "", fmt.Errorf("TMDB API error: %s", resp.Status)
			}

			var data titleResponse
			if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
				return "", fmt.Errorf("decode response: %w", err)
			}

			switch {
			case data.Name != "":
				return data.Name, nil
			case data.Title != "":
				return data.Title, nil
			default:
				return "", retry.Unrecoverable(ErrNotFound)
			}
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.MaxDelay(5*time.Second),
	)
}
