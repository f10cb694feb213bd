package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leafline/dispensary-cli/internal/crawler"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-fetch provider ratings for stored dispensaries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		limit, _ := cmd.Flags().GetInt("limit")
		if limit == 0 {
			limit = cfg.Refresh.Limit
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := crawler.RefreshRatings(ctx, newPlacesClient(), st, limit)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "examined %d  updated %d  failed %d\n", res.Examined, res.Updated, res.Failed)
		return nil
	},
}

func init() {
	refreshCmd.Flags().Int("limit", 0, "max dispensaries to refresh (0 = config default)")
	rootCmd.AddCommand(refreshCmd)
}
