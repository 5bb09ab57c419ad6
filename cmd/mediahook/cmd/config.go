package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/javi11/mediahook/internal/config"
)

func init() {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and manage configuration",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configFile)
			if err != nil {
				return err
			}
			fmt.Printf("config OK: %d root(s), %d qbittorrent instance(s), dry_run=%v\n",
				len(cfg.Roots), len(cfg.QBittorrent), cfg.General.IsDryRun())
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configFile)
			if err != nil {
				return err
			}
			// never echo credentials
			for i := range cfg.Roots {
				cfg.Roots[i].APIKey = "***"
			}
			for i := range cfg.QBittorrent {
				cfg.QBittorrent[i].Password = "***"
			}
			cfg.Telegram.Token = "***"
			cfg.TMDB.APIKey = "***"

			return yaml.NewEncoder(os.Stdout).Encode(cfg)
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(configFile); err == nil {
				return fmt.Errorf("config file %s already exists", configFile)
			}
			if err := config.SaveToFile(config.DefaultConfig(), configFile); err != nil {
				return err
			}
			fmt.Printf("wrote default config to %s\n", configFile)
			return nil
		},
	})

	rootCmd.AddCommand(configCmd)
}
