package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javi11/mediahook/internal/config"
	"github.com/javi11/mediahook/internal/events"
	"github.com/javi11/mediahook/internal/reconciler"
)

type fakeEngine struct {
	mu            sync.Mutex
	importEvents  []events.ImportEvent
	triggered     []string
	triggerResult *reconciler.Outcome
	triggerErr    error
	manualResult  *reconciler.Outcome
	manualErr     error
	last          map[string]*reconciler.Outcome
	busy          []string
}

func (f *fakeEngine) OnImportEvent(ev events.ImportEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.importEvents = append(f.importEvents, ev)
}

func (f *fakeEngine) TriggerRoot(_ context.Context, root string) (*reconciler.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggered = append(f.triggered, root)
	return f.triggerResult, f.triggerErr
}

func (f *fakeEngine) ManualImport(_ context.Context, root, filePath, title string) (*reconciler.Outcome, error) {
	return f.manualResult, f.manualErr
}

func (f *fakeEngine) LastOutcomes() map[string]*reconciler.Outcome {
	if f.last == nil {
		return map[string]*reconciler.Outcome{}
	}
	return f.last
}

func (f *fakeEngine) BusyRoots() []string { return f.busy }

type fakeSink struct {
	mu      sync.Mutex
	offered []events.ImportEvent
}

func (f *fakeSink) Offer(ev events.ImportEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offered = append(f.offered, ev)
}

func (f *fakeSink) OpenWindows() int { return len(f.offered) }

func testApp(engine Engine, sink EventSink) *fiber.App {
	app := fiber.New()
	cfg := config.DefaultConfig()
	server := NewServer(engine, sink, func() *config.Config { return cfg })
	server.SetupRoutes(app)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, payload any) (int, map[string]any) {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return resp.StatusCode, result
}

func TestWebhookSonarrImport(t *testing.T) {
	engine := &fakeEngine{}
	sink := &fakeSink{}
	app := testApp(engine, sink)

	payload := map[string]any{
		"eventType": "Download",
		"series": map[string]any{
			"id":     int64(42),
			"title":  "Severance",
			"tvdbId": int64(371980),
		},
		"episodes": []map[string]any{
			{"seasonNumber": 2, "episodeNumber": 3},
		},
		"episodeFile": map[string]any{
			"id":   int64(900),
			"path": "/tv/Severance/Season 02/Severance.S02E03.mkv",
			"size": int64(4 << 30),
		},
	}

	code, result := postJSON(t, app, "/webhook/sonarr", payload)

	assert.Equal(t, 200, code)
	assert.Equal(t, true, result["success"])

	require.Len(t, engine.importEvents, 1)
	ev := engine.importEvents[0]
	assert.Equal(t, events.ProviderSonarr, ev.Provider)
	assert.Equal(t, events.KindImport, ev.Kind)
	assert.Equal(t, "Severance", ev.Title)
	assert.Equal(t, "S02E03", ev.SeasonEpisode)
	require.Len(t, sink.offered, 1)
}

func TestWebhookTestPingIsAcknowledgedButIgnored(t *testing.T) {
	engine := &fakeEngine{}
	sink := &fakeSink{}
	app := testApp(engine, sink)

	code, result := postJSON(t, app, "/webhook/radarr", map[string]any{
		"eventType": "Test",
	})

	assert.Equal(t, 200, code)
	assert.Equal(t, true, result["success"])
	assert.Empty(t, engine.importEvents)
	assert.Empty(t, sink.offered)
}

func TestWebhookMalformedBodyStillAcknowledged(t *testing.T) {
	engine := &fakeEngine{}
	app := testApp(engine, &fakeSink{})

	req := httptest.NewRequest("POST", "/webhook/sonarr", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Empty(t, engine.importEvents)
}

func TestWebhookEmptyBodyRejected(t *testing.T) {
	app := testApp(&fakeEngine{}, &fakeSink{})

	req := httptest.NewRequest("POST", "/webhook/overseerr", bytes.NewReader(nil))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestWebhookOverseerrRequest(t *testing.T) {
	engine := &fakeEngine{}
	sink := &fakeSink{}
	app := testApp(engine, sink)

	payload := map[string]any{
		"notification_type": "MEDIA_APPROVED",
		"subject":           "Andor (2022)",
		"media": map[string]any{
			"media_type": "tv",
			"tmdbId":     83867,
		},
		"request": map[string]any{
			"requestedBy_username": "alice",
		},
	}

	code, _ := postJSON(t, app, "/webhook/overseerr", payload)

	assert.Equal(t, 200, code)
	require.Len(t, sink.offered, 1)
	assert.Equal(t, "Andor", sink.offered[0].Title)
	assert.Equal(t, 2022, sink.offered[0].Year)
	// request events still reach the engine, which ignores them itself
	require.Len(t, engine.importEvents, 1)
	assert.Equal(t, events.KindRequest, engine.importEvents[0].Kind)
}

func TestReconcileUnknownRoot(t *testing.T) {
	engine := &fakeEngine{triggerErr: assert.AnError}
	app := testApp(engine, nil)

	req := httptest.NewRequest("POST", "/api/reconcile/unknown", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, []string{"unknown"}, engine.triggered)
}

func TestReconcileSkippedWhenBusy(t *testing.T) {
	engine := &fakeEngine{
		triggerResult: &reconciler.Outcome{Root: "tv", Skipped: true},
	}
	app := testApp(engine, nil)

	code, result := postJSON(t, app, "/api/reconcile/tv", map[string]any{})

	assert.Equal(t, 200, code)
	assert.Equal(t, "Reconciliation already running", result["message"])
}

func TestManualImportValidation(t *testing.T) {
	app := testApp(&fakeEngine{}, nil)

	code, result := postJSON(t, app, "/api/manual-import", map[string]any{
		"root": "tv",
	})

	assert.Equal(t, 400, code)
	assert.Equal(t, false, result["success"])
}

func TestManualImportSuccess(t *testing.T) {
	engine := &fakeEngine{
		manualResult: &reconciler.Outcome{Root: "tv", Stage: reconciler.StageDone},
	}
	app := testApp(engine, nil)

	code, result := postJSON(t, app, "/api/manual-import", map[string]any{
		"root":      "tv",
		"file_path": "/tv/Show/Season 01/Show.S01E01.mkv",
		"title":     "Show",
	})

	assert.Equal(t, 200, code)
	assert.Equal(t, true, result["success"])
}

func TestStatusReportsEngineState(t *testing.T) {
	engine := &fakeEngine{
		busy: []string{"movies"},
		last: map[string]*reconciler.Outcome{
			"tv": {Root: "tv", Stage: reconciler.StageDone},
		},
	}
	app := testApp(engine, &fakeSink{})

	req := httptest.NewRequest("GET", "/api/status", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	data, ok := result["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, data["dry_run"])
	assert.Contains(t, data, "last_outcomes")
	assert.Contains(t, data, "busy_roots")
}
