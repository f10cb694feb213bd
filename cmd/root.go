package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leafline/dispensary-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "dispensary-cli",
	Short: "Dispensary acquisition and ranking pipeline",
	Long:  "Crawls Google Places for dispensaries county by county, enriches them with listing mentions, and computes cohort-normalized composite rankings.",
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
