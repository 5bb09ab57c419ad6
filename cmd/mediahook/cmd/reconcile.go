package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/javi11/mediahook/internal/config"
	"github.com/javi11/mediahook/internal/reconciler"
	"github.com/javi11/mediahook/internal/slogutil"
)

func init() {
	reconcileCmd := &cobra.Command{
		Use:   "reconcile [root...]",
		Short: "Run one reconciliation pass and exit",
		Long: `Run a single reconciliation pass against the named library roots
(or every configured root when none is given) and print the outcome as JSON.`,
		RunE: runReconcile,
	}

	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		slog.Default().Error("failed to load config", "err", err)
		return err
	}

	logger, _ := slogutil.Setup(cfg.Log)
	slog.SetDefault(logger)

	configManager := config.NewManager(cfg, configFile)
	comps, err := buildComponents(cfg, configManager, logger)
	if err != nil {
		logger.Error("failed to wire components", "err", err)
		return err
	}

	roots := args
	if len(roots) == 0 {
		for _, root := range cfg.Roots {
			roots = append(roots, root.Name)
		}
	}

	var outcomes []*reconciler.Outcome
	var failed bool
	for _, name := range roots {
		outcome, err := comps.engine.TriggerRoot(cmd.Context(), name)
		if err != nil {
			logger.Error("reconciliation failed", "root", name, "err", err)
			failed = true
			continue
		}
		outcomes = append(outcomes, outcome)
	}

	comps.engine.Close()
	if comps.aggregator != nil {
		comps.aggregator.FlushAll()
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(outcomes); err != nil {
		return err
	}

	if failed {
		return fmt.Errorf("one or more roots failed to reconcile")
	}
	return nil
}
