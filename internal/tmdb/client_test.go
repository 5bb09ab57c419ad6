package tmdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalizedTitle(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/3/movie/693134":
			assert.Contains(t, r.URL.RawQuery, "language=es-ES")
			w.Write([]byte(`{"title": "Dune: Parte Dos"}`))
		case "/3/tv/83867":
			w.Write([]byte(`{"name": "Andor"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient("key", "es-ES", WithBaseURL(server.URL))

	got := client.LocalizedTitle(context.Background(), "movie", 693134, "Dune: Part Two")
	assert.Equal(t, "Dune: Parte Dos", got)

	got = client.LocalizedTitle(context.Background(), "tv", 83867, "Andor")
	assert.Equal(t, "Andor", got)

	// not found falls back to the original
	got = client.LocalizedTitle(context.Background(), "movie", 1, "Original Title")
	assert.Equal(t, "Original Title", got)

	// second lookup is served from cache
	before := hits.Load()
	got = client.LocalizedTitle(context.Background(), "movie", 693134, "Dune: Part Two")
	assert.Equal(t, "Dune: Parte Dos", got)
	assert.Equal(t, before, hits.Load())
}

func TestLocalizedTitleDisabled(t *testing.T) {
	client := NewClient("", "es-ES")
	got := client.LocalizedTitle(context.Background(), "movie", 693134, "Dune: Part Two")
	assert.Equal(t, "Dune: Part Two", got)

	client = NewClient("key", "es-ES")
	got = client.LocalizedTitle(context.Background(), "movie", 0, "Dune: Part Two")
	assert.Equal(t, "Dune: Part Two", got)
}
