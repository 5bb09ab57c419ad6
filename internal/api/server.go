package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/javi11/mediahook/internal/config"
	"github.com/javi11/mediahook/internal/events"
	"github.com/javi11/mediahook/internal/reconciler"
)

// Engine is the subset of the reconciliation engine the API needs.
type Engine interface {
	OnImportEvent(ev events.ImportEvent)
	TriggerRoot(ctx context.Context, rootName string) (*reconciler.Outcome, error)
	ManualImport(ctx context.Context, rootName, filePath, title string) (*reconciler.Outcome, error)
	LastOutcomes() map[string]*reconciler.Outcome
	BusyRoots() []string
}

// EventSink receives normalized webhook events for grouped notifications.
type EventSink interface {
	Offer(ev events.ImportEvent)
	OpenWindows() int
}

// Server registers the webhook and management routes on a fiber app.
type Server struct {
	engine       Engine
	sink         EventSink
	configGetter config.ConfigGetter
	logger       *slog.Logger
	startTime    time.Time
}

// NewServer creates the API server. sink may be nil when notifications are
// disabled.
func NewServer(engine Engine, sink EventSink, configGetter config.ConfigGetter) *Server {
	return &Server{
		engine:       engine,
		sink:         sink,
		configGetter: configGetter,
		logger:       slog.Default().With("component", "api"),
		startTime:    time.Now(),
	}
}

// SetupRoutes registers all routes on the provided fiber app.
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/live", s.handleLive)

	app.Post("/webhook/sonarr", s.webhookHandler(events.ProviderSonarr))
	app.Post("/webhook/radarr", s.webhookHandler(events.ProviderRadarr))
	app.Post("/webhook/overseerr", s.webhookHandler(events.ProviderOverseerr))

	app.Get("/api/status", s.handleStatus)
	app.Post("/api/reconcile/:root", s.handleReconcile)
	app.Post("/api/manual-import", s.handleManualImport)
}
