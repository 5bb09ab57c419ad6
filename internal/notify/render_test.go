package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/javi11/mediahook/internal/events"
	"github.com/javi11/mediahook/internal/library"
	"github.com/javi11/mediahook/internal/qbit"
	"github.com/javi11/mediahook/internal/reconciler"
)

func TestRenderWindowSections(t *testing.T) {
	evs := []events.ImportEvent{
		{Provider: events.ProviderSonarr, Kind: events.KindImport, Title: "Show", SeasonEpisode: "S01E01", TVDBID: 42, Quality: "WEBDL-1080p"},
		{Provider: events.ProviderSonarr, Kind: events.KindUpgrade, Title: "Show", SeasonEpisode: "S01E02", TVDBID: 42},
		{Provider: events.ProviderOverseerr, Kind: events.KindRequest, Title: "Andor", Year: 2022,
			RequestStatus: events.RequestApproved, RequestedBy: "alice", Seasons: "2", TMDBID: 83867, MediaType: "tv"},
	}

	out := RenderWindow(evs, nil)

	assert.Contains(t, out, "<b>📥 Imported</b>")
	assert.Contains(t, out, "<b>⬆️ Upgraded</b>")
	assert.Contains(t, out, "<b>📨 Requests</b>")
	assert.Contains(t, out, "Show S01E01")
	assert.Contains(t, out, "thetvdb.com/dereferrer/series/42")
	assert.Contains(t, out, "[WEBDL-1080p]")
	assert.Contains(t, out, "requested by <i>alice</i>")
	assert.Contains(t, out, "seasons 2")
}

func TestRenderWindowEscapesHTML(t *testing.T) {
	evs := []events.ImportEvent{
		{Provider: events.ProviderRadarr, Kind: events.KindImport, Title: "Fast & <Furious>", Year: 2001},
	}

	out := RenderWindow(evs, nil)
	assert.Contains(t, out, "Fast &amp; &lt;Furious&gt;")
	assert.NotContains(t, out, "<Furious>")
}

func TestRenderOutcome(t *testing.T) {
	const gb = int64(1024 * 1024 * 1024)
	outcome := &reconciler.Outcome{
		Root:         "tv",
		Stage:        reconciler.StageDone,
		DryRun:       true,
		BytesPlanned: 25 * gb,
		BytesFreed:   25 * gb,
		MediaDeleted: []library.MediaItem{
			{Title: "Show S01E01", SizeBytes: 10 * gb},
		},
		TorrentsDeleted: []qbit.TorrentRef{
			{Name: "Show.S01E01.1080p", Instance: "main"},
		},
		TorrentsKept: []qbit.TorrentRef{
			{Name: "Show.S01E02.1080p", Instance: "main", SeedingMinutes: 120},
		},
		ThresholdUnreachable: true,
	}

	out := RenderOutcome(outcome)

	assert.Contains(t, out, "Reconciliation: tv")
	assert.Contains(t, out, "dry run")
	assert.Contains(t, out, "Freed 25.0 GB of 25.0 GB planned")
	assert.Contains(t, out, "Show S01E01")
	assert.Contains(t, out, "Torrents deleted")
	assert.Contains(t, out, "Still seeding")
	assert.Contains(t, out, "120 min seeded")
	assert.Contains(t, out, "Disk budget unreachable")
}
