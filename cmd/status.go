package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/leafline/dispensary-cli/internal/monitoring"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline health",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		lookback, _ := cmd.Flags().GetInt("lookback")
		asJSON, _ := cmd.Flags().GetBool("json")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		snap, err := monitoring.NewCollector(st).Collect(ctx, lookback)
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}

		fmt.Fprintf(os.Stdout, "crawl runs (last %dh): %d total, %d completed, %d failed, %d running\n",
			snap.LookbackHours, snap.CrawlTotal, snap.CrawlCompleted, snap.CrawlFailed, snap.CrawlRunning)
		fmt.Fprintf(os.Stdout, "acquired: %d found, %d added, %d updated\n",
			snap.Found, snap.Added, snap.Updated)
		fmt.Fprintf(os.Stdout, "corpus: %d active dispensaries, %d missing county, avg completeness %.1f\n",
			snap.ActiveDispensaries, snap.MissingCounty, snap.AvgCompleteness)
		if snap.LastCompletedCrawl != nil {
			fmt.Fprintf(os.Stdout, "last completed crawl: %s\n", snap.LastCompletedCrawl.Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().Int("lookback", 24, "lookback window in hours")
	statusCmd.Flags().Bool("json", false, "emit JSON")
	rootCmd.AddCommand(statusCmd)
}
