package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/javi11/mediahook/internal/api"
	"github.com/javi11/mediahook/internal/config"
	"github.com/javi11/mediahook/internal/slogutil"
)

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the mediahook webhook server",
		Long:  `Start the webhook server that listens for Sonarr/Radarr/Overseerr events and enforces the disk budget.`,
		RunE:  runServe,
	}

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration first (using default logger for config loading errors)
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		slog.Default().Error("failed to load config", "err", err)
		return err
	}

	logger, leveler := slogutil.Setup(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("Starting mediahook server",
		"roots", len(cfg.Roots),
		"qbittorrent_instances", len(cfg.QBittorrent),
		"dry_run", cfg.General.IsDryRun(),
		"log_level", cfg.Log.Level,
		"log_file", cfg.Log.File)

	if cfg.General.IsDryRun() {
		logger.Warn("Dry run is enabled: deletions are simulated and reported, nothing is removed")
	}

	// Config manager for dynamic configuration updates
	configManager := config.NewManager(cfg, configFile)

	configManager.OnConfigChange(func(oldConfig, newConfig *config.Config) {
		if oldConfig.Log.Level != newConfig.Log.Level {
			leveler.SetLevelString(newConfig.Log.Level)
			logger.Info("Log level updated dynamically",
				"old_level", oldConfig.Log.Level,
				"new_level", newConfig.Log.Level)
		}
		if oldConfig.General.IsDryRun() != newConfig.General.IsDryRun() {
			logger.Warn("Dry run setting changed",
				"old", oldConfig.General.IsDryRun(),
				"new", newConfig.General.IsDryRun())
		}
	})

	comps, err := buildComponents(cfg, configManager, logger)
	if err != nil {
		logger.Error("failed to wire components", "err", err)
		return err
	}

	app := createFiberApp(cfg, logger)

	var sink api.EventSink
	if comps.aggregator != nil {
		sink = comps.aggregator
	}
	apiServer := api.NewServer(comps.engine, sink, configManager.GetConfigGetter())
	apiServer.SetupRoutes(app)

	// Periodic sweep so the budget is enforced even without webhook traffic
	var sweeper *cron.Cron
	if cfg.General.SweepSchedule != "" {
		sweeper = cron.New()
		_, err := sweeper.AddFunc(cfg.General.SweepSchedule, func() {
			comps.engine.SweepAll(cmd.Context())
		})
		if err != nil {
			logger.Error("invalid sweep schedule", "schedule", cfg.General.SweepSchedule, "err", err)
			return err
		}
		sweeper.Start()
		logger.Info("Periodic sweep enabled", "schedule", cfg.General.SweepSchedule)
	}

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := app.Listen(cfg.API.ListenAddr()); err != nil {
			errChan <- err
		}
	}()
	logger.Info("Webhook server listening", "addr", cfg.API.ListenAddr())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig)
	case err := <-errChan:
		logger.Error("HTTP server error", "err", err)
	}

	// Stop accepting new work, then drain: in-flight reconciliations
	// finish applying and open notification windows flush early.
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("HTTP server shutdown error", "err", err)
	}
	if sweeper != nil {
		<-sweeper.Stop().Done()
	}
	comps.engine.Close()
	if comps.aggregator != nil {
		comps.aggregator.FlushAll()
	}

	logger.Info("mediahook shut down gracefully")
	return nil
}
