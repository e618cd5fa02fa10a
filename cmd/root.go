package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/glampguide/funnel-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "funnel-cli",
	Short: "Lead funnel dedupe and enrichment pipeline",
	Long:  "Imports outreach lead exports, extracts structured fields via Claude, validates emails through ZeroBounce, and resolves duplicates against HubSpot and the AlohaCamp registry.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
