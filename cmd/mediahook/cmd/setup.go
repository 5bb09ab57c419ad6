package cmd

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	fLogger "github.com/gofiber/fiber/v2/middleware/logger"

	"github.com/javi11/mediahook/internal/arrs"
	"github.com/javi11/mediahook/internal/config"
	"github.com/javi11/mediahook/internal/library"
	"github.com/javi11/mediahook/internal/matcher"
	"github.com/javi11/mediahook/internal/notify"
	"github.com/javi11/mediahook/internal/qbit"
	"github.com/javi11/mediahook/internal/reconciler"
	"github.com/javi11/mediahook/internal/tmdb"
)

// components holds the wired engine and its collaborators for one process.
type components struct {
	index      *library.Index
	torrents   *qbit.Manager
	finder     *matcher.Matcher
	engine     *reconciler.Engine
	notifier   *notify.Notifier
	aggregator *notify.Aggregator
}

// buildComponents wires the full engine from configuration. The notifier
// and aggregator are nil when Telegram is not configured.
func buildComponents(cfg *config.Config, configManager *config.Manager, logger *slog.Logger) (*components, error) {
	providers, err := arrs.BuildProviders(cfg)
	if err != nil {
		return nil, err
	}
	index := library.NewIndex(providers)

	torrents := qbit.NewManager(cfg.QBittorrent)
	instances := torrents.Instances()
	sources := make([]matcher.Source, 0, len(instances))
	for _, inst := range instances {
		sources = append(sources, inst)
	}
	finder := matcher.New(sources)

	c := &components{
		index:    index,
		torrents: torrents,
		finder:   finder,
	}

	if cfg.Telegram.Enabled() {
		var resolver notify.TitleResolver
		if cfg.TMDB.APIKey != "" {
			resolver = tmdb.NewClient(cfg.TMDB.APIKey, cfg.TMDB.Language)
			logger.Info("TMDB title localization enabled", "language", cfg.TMDB.Language)
		}

		tg := notify.NewTelegram(cfg.Telegram.Token)
		c.notifier = notify.NewNotifier(tg, cfg.Telegram.ChatID, cfg.Telegram.PrivateChatID, resolver)

		window := time.Duration(cfg.General.WindowSeconds) * time.Second
		c.aggregator = notify.NewAggregator(window, c.notifier.FlushWindow)
		logger.Info("Telegram notifications enabled", "window", window)
	} else {
		logger.Info("Telegram notifications disabled")
	}

	var opts []reconciler.Option
	if c.notifier != nil {
		opts = append(opts, reconciler.WithOutcomeSink(c.notifier))
	}
	c.engine = reconciler.NewEngine(index, finder, torrents, configManager.GetConfigGetter(), opts...)

	return c, nil
}

// createFiberApp creates and configures the HTTP application.
func createFiberApp(cfg *config.Config, logger *slog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			logger.Error("Fiber error", "path", c.Path(), "method", c.Method(), "error", err)
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Request logging only in debug mode
	debugMode := cfg.Log.Level == "debug"
	fiberLogger := fLogger.New()
	app.Use(func(c *fiber.Ctx) error {
		if debugMode {
			return fiberLogger(c)
		}
		return c.Next()
	})

	return app
}
